package occupancy

import (
	"io"

	"github.com/google/uuid"
)

// Server implements the OccupancyServer interface.
type Server struct {
	observer *StreamObserver
}

// NewServer constructs a server.
func NewServer(observer *StreamObserver) *Server {
	return &Server{observer: observer}
}

// StreamOccupancy ingests occupancy reports and updates the observer.
func (s *Server) StreamOccupancy(stream Occupancy_StreamOccupancyServer) error {
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&Ack{})
		}
		if err != nil {
			return err
		}
		listingID, err := uuid.Parse(msg.ListingId)
		if err != nil {
			continue
		}
		s.observer.Update(stream.Context(), listingID, int(msg.FreeBoxes))
	}
}
