// Package pb hand-writes the gRPC message and service types this repo
// needs instead of running protoc against a .proto file, mirroring the
// non-generated style the rest of this stack uses for its service
// boundaries.
package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// LedgerEventProto is the wire form of an appended audit-ledger event.
type LedgerEventProto struct {
	EventId      string
	EventType    string
	Timestamp    *timestamppb.Timestamp
	SessionId    string
	DeviceId     string
	UserId       string
	DataHash     string
	Metadata     map[string]string
	PreviousHash string
	EventHash    string
	Signature    []byte
	SigningKeyId string
}

// VerifyChainRequest bounds a chain-integrity check to an event range.
type VerifyChainRequest struct {
	FromEventId string
	ToEventId   string
}

// VerifyChainResponse reports whether the requested range is intact and,
// if not, the first broken link.
type VerifyChainResponse struct {
	Valid          bool
	BrokenAtEventId string
	Reason         string
}

type LedgerServiceClient interface {
	AppendEvent(ctx context.Context, in *LedgerEventProto, opts ...grpc.CallOption) (*LedgerEventProto, error)
	VerifyChain(ctx context.Context, in *VerifyChainRequest, opts ...grpc.CallOption) (*VerifyChainResponse, error)
}

type MockLedgerClient struct{}

func (m *MockLedgerClient) AppendEvent(ctx context.Context, in *LedgerEventProto, opts ...grpc.CallOption) (*LedgerEventProto, error) {
	return in, nil
}

func (m *MockLedgerClient) VerifyChain(ctx context.Context, in *VerifyChainRequest, opts ...grpc.CallOption) (*VerifyChainResponse, error) {
	return &VerifyChainResponse{Valid: true}, nil
}
