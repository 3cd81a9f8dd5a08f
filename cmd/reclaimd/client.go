package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"reclaim/api/grpcserver"
)

var (
	adminAddr string
	timeout   time.Duration
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Ask a running reclaimd to run one cycle now.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return callAdmin(cmd, func(ctx context.Context, c *grpcserver.AdminClient) (*structpb.Struct, error) {
			return c.Collect(ctx)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the counters of a running reclaimd.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return callAdmin(cmd, func(ctx context.Context, c *grpcserver.AdminClient) (*structpb.Struct, error) {
			return c.Stats(ctx)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{collectCmd, statsCmd} {
		c.Flags().StringVar(&adminAddr, "addr", "localhost:50051", "admin API address")
		c.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "call timeout")
	}
}

func callAdmin(cmd *cobra.Command, call func(context.Context, *grpcserver.AdminClient) (*structpb.Struct, error)) error {
	conn, err := grpc.NewClient(adminAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	out, err := call(ctx, grpcserver.NewAdminClient(conn))
	if err != nil {
		return err
	}
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(out)
	if err != nil {
		return err
	}
	cmd.Println(string(b))
	return nil
}
