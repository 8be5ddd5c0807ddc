package door

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/doorwatch/internal/api/dto"
	domain "github.com/oshokin/doorwatch/internal/domain/door"
)

// Service abstracts the state machine operations the transport depends on.
type Service interface {
	ApplyTransition(ctx context.Context, open bool) domain.TransitionResult
	Snapshot() *domain.Snapshot
	History() []domain.HistoryEntry
}

// Server implements DoorServiceServer.
type Server struct {
	// service provides the door state machine.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// SetDoorState applies the requested door state.
func (s *Server) SetDoorState(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	result := s.service.ApplyTransition(ctx, req.GetValue())

	response := new(structpb.Struct)
	if err := toProto(dto.NewTransition(result), response); err != nil {
		return nil, err
	}

	return response, nil
}

// GetStatus returns the current status.
func (s *Server) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	response := new(structpb.Struct)
	if err := toProto(dto.NewStatus(s.service.Snapshot()), response); err != nil {
		return nil, err
	}

	return response, nil
}

// GetHistory returns the event history.
func (s *Server) GetHistory(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	response := new(structpb.ListValue)
	if err := toProto(dto.NewHistory(s.service.History()), response); err != nil {
		return nil, err
	}

	return response, nil
}

// toProto converts a JSON document into a Struct or ListValue.
func toProto(document any, message proto.Message) error {
	data, err := json.Marshal(document)
	if err != nil {
		return status.Errorf(codes.Internal, "encode response: %v", err)
	}

	if err := protojson.Unmarshal(data, message); err != nil {
		return status.Errorf(codes.Internal, "convert response: %v", err)
	}

	return nil
}

// FromProto decodes a Struct or ListValue response into a JSON document type.
func FromProto(message proto.Message, document any) error {
	data, err := protojson.Marshal(message)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, document)
}
