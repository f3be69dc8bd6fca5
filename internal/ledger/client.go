package ledger

// RemoteClient is a non-blocking gRPC client for appending events to a
// ledger service running in another process, used by components that
// don't hold the local Ledger facade directly (e.g. a device-manager
// sidecar). Grounded on the teacher's AuditLogger: fire-and-forget via a
// background goroutine so a slow or unreachable ledger service never
// blocks the caller's hot path.

import (
	"context"
	"log"
	"time"

	"github.com/neuroflux/engine/pb"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// RemoteClient wraps a pb.LedgerServiceClient so callers without local
// ledger access can still append events.
type RemoteClient struct {
	client pb.LedgerServiceClient
	logger *log.Logger
}

// NewRemoteClient wraps c for use by RemoteClient.
func NewRemoteClient(c pb.LedgerServiceClient) *RemoteClient {
	return &RemoteClient{
		client: c,
		logger: log.New(log.Writer(), "[ledger-client] ", log.LstdFlags),
	}
}

// AppendAsync fires e at the remote ledger service without waiting for
// the response; failures are logged rather than surfaced, since the
// caller has no in-band way to retry a fire-and-forget append.
func (c *RemoteClient) AppendAsync(e *Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := c.client.AppendEvent(ctx, toProto(e)); err != nil {
			c.logger.Printf("CRITICAL: ledger service unreachable for event %s: %v", e.EventID, err)
		}
	}()
}

// VerifyRange asks the remote ledger service whether the chain between
// fromEventID and toEventID is intact.
func (c *RemoteClient) VerifyRange(ctx context.Context, fromEventID, toEventID string) (*pb.VerifyChainResponse, error) {
	return c.client.VerifyChain(ctx, &pb.VerifyChainRequest{FromEventId: fromEventID, ToEventId: toEventID})
}

func toProto(e *Event) *pb.LedgerEventProto {
	return &pb.LedgerEventProto{
		EventId:      e.EventID,
		EventType:    string(e.EventType),
		Timestamp:    timestamppb.New(e.Timestamp),
		SessionId:    e.SessionID,
		DeviceId:     e.DeviceID,
		UserId:       e.UserID,
		DataHash:     e.DataHash,
		Metadata:     e.Metadata,
		PreviousHash: e.PreviousHash,
		EventHash:    e.EventHash,
		Signature:    e.Signature,
		SigningKeyId: e.SigningKeyID,
	}
}
