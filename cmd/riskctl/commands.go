package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/debris-risk/core"
	"github.com/signalsfoundry/debris-risk/internal/logging"
	"github.com/signalsfoundry/debris-risk/internal/observability"
	"github.com/signalsfoundry/debris-risk/internal/riskapi"
	"github.com/signalsfoundry/debris-risk/model"
)

var errServerRequired = errors.New("--server is required for this command")

type rootOptions struct {
	output  string
	server  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "riskctl",
		Short:         "Estimate orbital debris collision risk for a satellite mission",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOutput(opts.output)
		},
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "Output format: text, json or yaml")
	root.PersistentFlags().StringVar(&opts.server, "server", "", "risk-server gRPC address; computed locally when empty")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Deadline for calls to --server")

	root.AddCommand(
		newAssessCmd(opts),
		newDefaultsCmd(opts),
		newOrbitCmd(opts),
		newProfilesCmd(opts),
	)
	return root
}

// flagName maps a parameter wire name to its CLI flag.
func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

func newAssessCmd(opts *rootOptions) *cobra.Command {
	values := make(map[string]*float64, len(model.FieldNames()))
	var breakdown bool

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess a parameter set (defaults apply to every flag not given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := make(map[string]float64, len(values))
			for name, v := range values {
				fields[name] = *v
			}
			params, err := model.ParameterSetFromFields(fields)
			if err != nil {
				return err
			}
			if err := params.Validate(); err != nil {
				return err
			}

			out := assessOutput{Parameters: params}
			var b model.Breakdown
			if opts.server == "" {
				out.Assessment, b = core.AssessWithBreakdown(params)
			} else {
				ctx, client, closeFn, err := opts.connect(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()
				if out.Assessment, b, err = client.Assess(ctx, params); err != nil {
					return err
				}
			}
			if breakdown {
				out.Breakdown = &b
			}
			return render(cmd.OutOrStdout(), opts.output, out, func(w io.Writer) error {
				return writeAssessmentText(w, out)
			})
		},
	}

	defaults := model.DefaultParameters().Fields()
	for _, name := range model.FieldNames() {
		v := new(float64)
		values[name] = v
		cmd.Flags().Float64Var(v, flagName(name), defaults[name], "Parameter "+name)
	}
	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "Include the intermediate terms of the formula")
	return cmd
}

func newDefaultsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the default parameter set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := model.DefaultParameters()
			if opts.server != "" {
				ctx, client, closeFn, err := opts.connect(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()
				if params, err = client.Defaults(ctx); err != nil {
					return err
				}
			}
			return render(cmd.OutOrStdout(), opts.output, params, func(w io.Writer) error {
				return writeParametersText(w, params)
			})
		},
	}
}

func newOrbitCmd(opts *rootOptions) *cobra.Command {
	var line1, line2, at string
	var epoch bool

	cmd := &cobra.Command{
		Use:   "orbit",
		Short: "Derive altitude, inclination and regime from a TLE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var when time.Time
			switch {
			case at != "":
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC 3339: %w", err)
				}
				when = parsed
			case epoch:
				tleEpoch, err := core.TLEEpoch(line1, line2)
				if err != nil {
					return err
				}
				when = tleEpoch
			}

			var result riskapi.OrbitResult
			if opts.server == "" {
				if when.IsZero() {
					when = time.Now()
				}
				orbit, err := core.OrbitFromTLE(line1, line2, when)
				if err != nil {
					return err
				}
				result = riskapi.OrbitResultFrom(orbit)
			} else {
				ctx, client, closeFn, err := opts.connect(cmd.Context())
				if err != nil {
					return err
				}
				defer closeFn()
				if result, err = client.DeriveOrbit(ctx, line1, line2, when); err != nil {
					return err
				}
			}
			return render(cmd.OutOrStdout(), opts.output, result, func(w io.Writer) error {
				return writeOrbitText(w, result)
			})
		},
	}
	cmd.Flags().StringVar(&line1, "tle1", "", "TLE line 1")
	cmd.Flags().StringVar(&line2, "tle2", "", "TLE line 2")
	cmd.Flags().StringVar(&at, "at", "", "Propagate to this RFC 3339 time (default now)")
	cmd.Flags().BoolVar(&epoch, "epoch", false, "Propagate to the TLE epoch")
	_ = cmd.MarkFlagRequired("tle1")
	_ = cmd.MarkFlagRequired("tle2")
	cmd.MarkFlagsMutuallyExclusive("at", "epoch")
	return cmd
}

func newProfilesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect the profiles served by --server",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles with their latest assessment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, closeFn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			profiles, err := client.ListProfiles(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, profiles, func(w io.Writer) error {
				return writeProfilesText(w, profiles)
			})
		},
	}

	get := &cobra.Command{
		Use:   "get PROFILE_ID",
		Short: "Show the latest assessment of one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, client, closeFn, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := client.ProfileAssessment(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, res, func(w io.Writer) error {
				fmt.Fprintf(w, "Profile %s (revision %d)\n", res.ProfileID, res.Revision)
				if err := writeAssessmentText(w, assessOutput{Parameters: res.Parameters, Assessment: res.Assessment}); err != nil {
					return err
				}
				if res.Orbit != nil {
					fmt.Fprintln(w)
					return writeOrbitText(w, *res.Orbit)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

// connect dials --server and returns a context bounded by --timeout and
// tagged with a fresh request ID.
func (o *rootOptions) connect(parent context.Context) (context.Context, *riskapi.Client, func(), error) {
	if o.server == "" {
		return nil, nil, nil, errServerRequired
	}
	if parent == nil {
		parent = context.Background()
	}
	conn, err := grpc.NewClient(o.server,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		observability.GRPCDialOption(),
		grpc.WithChainUnaryInterceptor(riskapi.RequestIDUnaryClientInterceptor()),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dial %s: %w", o.server, err)
	}

	ctx, cancel := context.WithTimeout(parent, o.timeout)
	ctx, _ = logging.EnsureRequestID(ctx)
	closeFn := func() {
		cancel()
		_ = conn.Close()
	}
	return ctx, riskapi.NewClient(conn), closeFn, nil
}
