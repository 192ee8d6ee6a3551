package riskapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/debris-risk/model"
)

// Client is a typed wrapper around a connection to RiskService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Assess evaluates params on the server.
func (c *Client) Assess(ctx context.Context, params model.ParameterSet) (model.RiskAssessment, model.Breakdown, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		keyParameters: structpb.NewStructValue(ParametersToStruct(params)),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Assess"), req, out); err != nil {
		return model.RiskAssessment{}, model.Breakdown{}, err
	}
	a, err := AssessmentFromStruct(structField(out, keyAssessment))
	if err != nil {
		return model.RiskAssessment{}, model.Breakdown{}, err
	}
	b, err := BreakdownFromStruct(structField(out, keyBreakdown))
	if err != nil {
		return model.RiskAssessment{}, model.Breakdown{}, err
	}
	return a, b, nil
}

// Defaults fetches the server's default parameter set.
func (c *Client) Defaults(ctx context.Context) (model.ParameterSet, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetDefaults"), &emptypb.Empty{}, out); err != nil {
		return model.ParameterSet{}, err
	}
	return ParametersFromStruct(structField(out, keyParameters))
}

// ListProfiles lists catalog profiles with their latest assessments.
func (c *Client) ListProfiles(ctx context.Context) ([]ProfileSummary, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("ListProfiles"), &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return profileSummariesFromStruct(out)
}

// ProfileAssessment fetches the latest assessment of one profile.
func (c *Client) ProfileAssessment(ctx context.Context, id string) (ProfileResult, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		keyProfileID: structpb.NewStringValue(id),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("GetProfileAssessment"), req, out); err != nil {
		return ProfileResult{}, err
	}
	return profileResultFromStruct(out)
}

// UpdateProfile replaces a profile's parameters.
func (c *Client) UpdateProfile(ctx context.Context, id string, params model.ParameterSet) (ProfileResult, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		keyProfileID:  structpb.NewStringValue(id),
		keyParameters: structpb.NewStructValue(ParametersToStruct(params)),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("UpdateProfile"), req, out); err != nil {
		return ProfileResult{}, err
	}
	return profileResultFromStruct(out)
}

// DeriveOrbit propagates a TLE on the server. A zero at means "now" on the
// server's clock.
func (c *Client) DeriveOrbit(ctx context.Context, line1, line2 string, at time.Time) (OrbitResult, error) {
	fields := map[string]*structpb.Value{
		keyTLELine1: structpb.NewStringValue(line1),
		keyTLELine2: structpb.NewStringValue(line2),
	}
	if !at.IsZero() {
		fields[keyAt] = structpb.NewStringValue(at.UTC().Format(time.RFC3339))
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("DeriveOrbit"), &structpb.Struct{Fields: fields}, out); err != nil {
		return OrbitResult{}, err
	}
	return OrbitFromStruct(out)
}
