package occupancy

import "google.golang.org/grpc"

// OccupancyReport represents a streaming update from a site controller.
type OccupancyReport struct {
	ListingId string
	FreeBoxes int64
	Ts        int64
}

// Ack is returned when the stream closes.
type Ack struct{}

// OccupancyServer defines the gRPC contract.
type OccupancyServer interface {
	StreamOccupancy(Occupancy_StreamOccupancyServer) error
}

// RegisterOccupancyServer registers the service implementation.
func RegisterOccupancyServer(s *grpc.Server, srv OccupancyServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "occupancy.Occupancy",
		HandlerType: (*OccupancyServer)(nil),
		Streams: []grpc.StreamDesc{{
			StreamName:    "StreamOccupancy",
			Handler:       _Occupancy_StreamOccupancy_Handler,
			ServerStreams: true,
			ClientStreams: true,
		}},
	}, srv)
}

// Occupancy_StreamOccupancyServer defines the bidi stream interface.
type Occupancy_StreamOccupancyServer interface {
	grpc.ServerStream
	SendAndClose(*Ack) error
	Recv() (*OccupancyReport, error)
}

func _Occupancy_StreamOccupancy_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(OccupancyServer).StreamOccupancy(&occupancyStreamServer{ServerStream: stream})
}

type occupancyStreamServer struct {
	grpc.ServerStream
}

func (s *occupancyStreamServer) SendAndClose(*Ack) error { return nil }

func (s *occupancyStreamServer) Recv() (*OccupancyReport, error) {
	msg := new(OccupancyReport)
	if err := s.ServerStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}
