package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// SamplePacketProto is the wire form of neural.SamplePacket.
type SamplePacketProto struct {
	Channels       []string
	SamplingRateHz float64
	Data           []*ChannelRow
	Timestamp      *timestamppb.Timestamp
	DeviceId       string
	SessionId      string
	SignalType     string
	Source         string
}

// ChannelRow carries one channel's samples; SamplePacketProto.Data holds
// one row per channel, matching neural.SamplePacket's [channel][sample]
// layout.
type ChannelRow struct {
	Values []float64
}

// ClassificationResultProto is the wire form of neural.ClassificationResult.
type ClassificationResultProto struct {
	Kind          string
	Timestamp     *timestamppb.Timestamp
	Label         string
	Probabilities map[string]float64
	Confidence    float64
	LatencyMs     float64
	ExtractorMs   float64
	ClassifierMs  float64
	Metadata      map[string]string

	Arousal   float64
	Valence   float64
	Attention float64

	EpochNumber           int32
	SleepDepth            float64
	TransitionProbability float64

	ControlSignal  []float64
	ErdErsScore    float64
	SpatialPattern []float64

	RiskLevel            string
	Probability           float64
	TimeToSeizureMinutes  float64
	HasTimeToSeizure      bool
	SpatialFocus          []int32
	PatientId             string
}

// StreamProcessorServer is the server-side contract for the bidirectional
// processStream operation: the gateway sends sample packets in, the
// engine sends classification results out, independently of each other.
type StreamProcessorServer interface {
	ProcessStream(StreamProcessor_ProcessStreamServer) error
}

type UnimplementedStreamProcessorServer struct{}

func (UnimplementedStreamProcessorServer) ProcessStream(StreamProcessor_ProcessStreamServer) error {
	return nil
}

// StreamProcessor_ProcessStreamServer is hand-written in the same
// mocking-the-server-struct style used across this stack's other gRPC
// boundaries, standing in for the protoc-generated stream type.
type StreamProcessor_ProcessStreamServer interface {
	Send(*ClassificationResultProto) error
	Recv() (*SamplePacketProto, error)
	grpc.ServerStream
}

type StreamProcessorClient interface {
	ProcessStream(opts ...grpc.CallOption) (StreamProcessor_ProcessStreamClient, error)
}

type StreamProcessor_ProcessStreamClient interface {
	Send(*SamplePacketProto) error
	Recv() (*ClassificationResultProto, error)
	grpc.ClientStream
}

// NewStreamProcessorClient builds a client stub against an already-dialed
// connection, mirroring the shape protoc-gen-go-grpc would emit.
func NewStreamProcessorClient(cc grpc.ClientConnInterface) StreamProcessorClient {
	return &streamProcessorClient{cc}
}

type streamProcessorClient struct {
	cc grpc.ClientConnInterface
}

func (c *streamProcessorClient) ProcessStream(opts ...grpc.CallOption) (StreamProcessor_ProcessStreamClient, error) {
	stream, err := c.cc.NewStream(context.Background(), &streamProcessorServiceDesc.Streams[0], "/neuroflux.stream.StreamProcessor/ProcessStream", opts...)
	if err != nil {
		return nil, err
	}
	return &streamProcessorClientStream{stream}, nil
}

type streamProcessorClientStream struct {
	grpc.ClientStream
}

func (x *streamProcessorClientStream) Send(m *SamplePacketProto) error {
	return x.ClientStream.SendMsg(m)
}

func (x *streamProcessorClientStream) Recv() (*ClassificationResultProto, error) {
	m := new(ClassificationResultProto)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterStreamProcessorServer wires a hand-rolled StreamProcessorServer
// onto a real *grpc.Server. There is no .proto file behind this service, so
// the ServiceDesc is built directly against grpc-go's public registration
// surface rather than generated by protoc.
func RegisterStreamProcessorServer(s *grpc.Server, srv StreamProcessorServer) {
	s.RegisterService(&streamProcessorServiceDesc, srv)
}

var streamProcessorServiceDesc = grpc.ServiceDesc{
	ServiceName: "neuroflux.stream.StreamProcessor",
	HandlerType: (*StreamProcessorServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ProcessStream",
			Handler:       streamProcessorProcessStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "neuroflux/stream.proto",
}

func streamProcessorProcessStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(StreamProcessorServer).ProcessStream(&streamProcessorServerStream{stream})
}

type streamProcessorServerStream struct {
	grpc.ServerStream
}

func (x *streamProcessorServerStream) Send(m *ClassificationResultProto) error {
	return x.ServerStream.SendMsg(m)
}

func (x *streamProcessorServerStream) Recv() (*SamplePacketProto, error) {
	m := new(SamplePacketProto)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
