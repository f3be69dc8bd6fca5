package streamproc

import (
	"io"
	"log"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/neuroflux/engine/internal/circuitbreaker"
	"github.com/neuroflux/engine/internal/neural"
	"github.com/neuroflux/engine/pb"
)

// GRPCServer exposes a Processor over the bidirectional processStream
// RPC: one goroutine drains inbound sample packets into the processor,
// another drains processor results back out to the caller. Grounded on
// the Recv-loop-plus-goroutine pattern this stack uses for its other
// streaming service boundaries.
type GRPCServer struct {
	pb.UnimplementedStreamProcessorServer
	processor *Processor
	logger    *log.Logger
}

func NewGRPCServer(processor *Processor) *GRPCServer {
	return &GRPCServer{processor: processor, logger: log.New(os.Stderr, "[streamproc-grpc] ", log.LstdFlags)}
}

func (s *GRPCServer) ProcessStream(stream pb.StreamProcessor_ProcessStreamServer) error {
	errs := make(chan error, 2)

	go func() {
		for {
			in, err := stream.Recv()
			if err == io.EOF {
				errs <- nil
				return
			}
			if err != nil {
				errs <- err
				return
			}
			packet := packetFromProto(in)
			if err := s.processor.Ingest(packet); err != nil {
				s.logger.Printf("ingest error for %s/%s: %v", packet.DeviceID, packet.SessionID, err)
			}
		}
	}()

	go func() {
		for result := range s.processor.Results() {
			if err := stream.Send(resultToProto(result)); err != nil {
				errs <- err
				return
			}
		}
	}()

	return <-errs
}

func packetFromProto(in *pb.SamplePacketProto) neural.SamplePacket {
	data := make([][]float64, len(in.Data))
	for i, row := range in.Data {
		data[i] = row.Values
	}
	var ts = in.Timestamp.AsTime()
	return neural.SamplePacket{
		Channels:       in.Channels,
		SamplingRateHz: in.SamplingRateHz,
		Data:           data,
		Timestamp:      ts,
		DeviceID:       in.DeviceId,
		SessionID:      in.SessionId,
		SignalType:     neural.SignalType(in.SignalType),
		Source:         in.Source,
	}
}

// StreamBreakerInterceptor rejects a new processStream call while the
// device-link breaker is open, so a gateway that's already failing to
// reach devices doesn't also pile up stalled gRPC streams against this
// process.
func StreamBreakerInterceptor(cb *circuitbreaker.CircuitBreaker) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, handler(srv, ss)
		})
		return err
	}
}

func resultToProto(r neural.ClassificationResult) *pb.ClassificationResultProto {
	out := &pb.ClassificationResultProto{
		Kind:                  string(r.Kind),
		Timestamp:             timestamppb.New(r.Timestamp),
		Label:                 r.Label,
		Probabilities:         r.Probabilities,
		Confidence:            r.Confidence,
		LatencyMs:             r.LatencyMs,
		ExtractorMs:           r.ExtractorMs,
		ClassifierMs:          r.ClassifierMs,
		Metadata:              r.Metadata,
		Arousal:               r.Arousal,
		Valence:               r.Valence,
		Attention:             r.Attention,
		EpochNumber:           int32(r.EpochNumber),
		SleepDepth:            r.SleepDepth,
		TransitionProbability: r.TransitionProbability,
		ControlSignal:         r.ControlSignal[:],
		ErdErsScore:           r.ErdErsScore,
		SpatialPattern:        r.SpatialPattern,
		RiskLevel:             string(r.RiskLevel),
		Probability:           r.Probability,
		PatientId:             r.PatientID,
	}
	if r.TimeToSeizureMinutes != nil {
		out.HasTimeToSeizure = true
		out.TimeToSeizureMinutes = *r.TimeToSeizureMinutes
	}
	for _, idx := range r.SpatialFocus {
		out.SpatialFocus = append(out.SpatialFocus, int32(idx))
	}
	return out
}
