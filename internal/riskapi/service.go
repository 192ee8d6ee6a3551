package riskapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/debris-risk/core"
	"github.com/signalsfoundry/debris-risk/internal/logging"
	"github.com/signalsfoundry/debris-risk/internal/observability"
	"github.com/signalsfoundry/debris-risk/internal/state"
	"github.com/signalsfoundry/debris-risk/model"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "debrisrisk.v1.RiskService"

// RiskServiceServer is the server API for the risk service. Messages are
// protobuf well-known types so the service needs no generated code.
type RiskServiceServer interface {
	Assess(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDefaults(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListProfiles(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetProfileAssessment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeriveOrbit(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RiskServiceDesc describes the risk service for grpc.Server registration.
var RiskServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RiskServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Assess", Handler: structHandler("Assess", RiskServiceServer.Assess)},
		{MethodName: "GetDefaults", Handler: emptyHandler("GetDefaults", RiskServiceServer.GetDefaults)},
		{MethodName: "ListProfiles", Handler: emptyHandler("ListProfiles", RiskServiceServer.ListProfiles)},
		{MethodName: "GetProfileAssessment", Handler: structHandler("GetProfileAssessment", RiskServiceServer.GetProfileAssessment)},
		{MethodName: "UpdateProfile", Handler: structHandler("UpdateProfile", RiskServiceServer.UpdateProfile)},
		{MethodName: "DeriveOrbit", Handler: structHandler("DeriveOrbit", RiskServiceServer.DeriveOrbit)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "debrisrisk/v1/risk.proto",
}

// RegisterRiskServiceServer registers srv on s.
func RegisterRiskServiceServer(s grpc.ServiceRegistrar, srv RiskServiceServer) {
	s.RegisterService(&RiskServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func structHandler(name string, call func(RiskServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return unaryHandler(name, func() *structpb.Struct { return new(structpb.Struct) }, call)
}

func emptyHandler(name string, call func(RiskServiceServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)) grpc.MethodHandler {
	return unaryHandler(name, func() *emptypb.Empty { return new(emptypb.Empty) }, call)
}

func unaryHandler[T any](name string, newReq func() T, call func(RiskServiceServer, context.Context, T) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RiskServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RiskServiceServer), ctx, req.(T))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RiskService implements RiskServiceServer on top of an AssessmentState.
type RiskService struct {
	state *state.AssessmentState
	log   logging.Logger
	now   func() time.Time
}

// NewRiskService wires a RiskService to the shared AssessmentState and
// optional logger.
func NewRiskService(st *state.AssessmentState, log logging.Logger) *RiskService {
	if log == nil {
		log = logging.Noop()
	}
	return &RiskService{state: st, log: log, now: time.Now}
}

// NewServer builds a gRPC server with the risk service registered and the
// request-id, tracing and (optionally) metrics interceptors chained in that
// order.
func NewServer(svc RiskServiceServer, log logging.Logger, metrics *observability.RiskCollector, opts ...grpc.ServerOption) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	if metrics != nil {
		interceptors = append(interceptors, metrics.UnaryServerInterceptor())
	}
	opts = append(opts,
		observability.GRPCServerOption(),
		grpc.ChainUnaryInterceptor(interceptors...),
	)
	srv := grpc.NewServer(opts...)
	RegisterRiskServiceServer(srv, svc)
	return srv
}

func (s *RiskService) ensureReady() error {
	if s == nil || s.state == nil {
		return ToStatusError(fmt.Errorf("risk service is not initialised"))
	}
	return nil
}

// Assess evaluates an ad-hoc parameter set.
func (s *RiskService) Assess(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	params, err := ParametersFromStruct(structField(in, keyParameters))
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "RiskService.Evaluate", "")
	defer span.End()

	a, b, err := s.state.Evaluate(ctx, params)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	span.SetAttributes(
		attribute.Float64("risk.probability_percent", a.ProbabilityPercent),
		attribute.String("risk.tier", string(a.Tier)),
	)

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyAssessment: structpb.NewStructValue(AssessmentToStruct(a)),
		keyBreakdown:  structpb.NewStructValue(BreakdownToStruct(b)),
	}}, nil
}

// GetDefaults returns the default parameter set.
func (s *RiskService) GetDefaults(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		keyParameters: structpb.NewStructValue(ParametersToStruct(model.DefaultParameters())),
	}}, nil
}

// ListProfiles returns every catalog profile with its latest assessment.
func (s *RiskService) ListProfiles(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return profileSummariesToStruct(s.state.Catalog().ListProfiles(), s.state.Assessments()), nil
}

// GetProfileAssessment returns the latest assessment of one profile.
func (s *RiskService) GetProfileAssessment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	id, err := profileIDFrom(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	pa, err := s.state.Assessment(id)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return profileResultToStruct(pa), nil
}

// UpdateProfile replaces a profile's parameters and returns the new
// assessment.
func (s *RiskService) UpdateProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	id, err := profileIDFrom(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	params, err := ParametersFromStruct(structField(in, keyParameters))
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "RiskService.UpdateParameters", id)
	defer span.End()

	pa, err := s.state.UpdateParameters(id, params)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	logging.LoggerFromContext(ctx, s.log).Info(ctx, "profile parameters updated",
		logging.String("profile_id", id),
		logging.String("tier", string(pa.Assessment.Tier)),
	)
	return profileResultToStruct(pa), nil
}

// DeriveOrbit propagates a TLE to the requested instant (now when omitted).
func (s *RiskService) DeriveOrbit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	line1 := stringField(in, keyTLELine1)
	line2 := stringField(in, keyTLELine2)
	if line1 == "" || line2 == "" {
		return nil, ToStatusError(fmt.Errorf("%w: %s and %s are required", ErrInvalidRequest, keyTLELine1, keyTLELine2))
	}

	at := s.now()
	if raw := strings.TrimSpace(stringField(in, keyAt)); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, ToStatusError(fmt.Errorf("%w: at must be RFC 3339: %v", ErrInvalidRequest, err))
		}
		at = parsed
	}

	_, span := StartChildSpan(ctx, "RiskService.OrbitFromTLE", "")
	defer span.End()

	orbit, err := core.OrbitFromTLE(line1, line2, at)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	span.SetAttributes(attribute.Int64("orbit.norad_id", int64(orbit.NoradID)))
	return OrbitToStruct(OrbitResultFrom(orbit)), nil
}

func profileIDFrom(in *structpb.Struct) (string, error) {
	id := strings.TrimSpace(stringField(in, keyProfileID))
	if id == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidRequest, keyProfileID)
	}
	return id, nil
}
