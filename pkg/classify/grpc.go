package classify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/adscout/adscout/pkg/models"
	classifierv1 "github.com/adscout/adscout/proto"
)

// GRPCClassifier calls the external classification service via gRPC.
type GRPCClassifier struct {
	conn   *grpc.ClientConn
	client classifierv1.ClassifierServiceClient
}

// NewGRPCClassifier creates a classifier client. Uses insecure (plaintext)
// transport — the classifier is expected to run as a sidecar or on
// localhost. If it ever crosses a network boundary this must move to TLS.
func NewGRPCClassifier(addr string) (*GRPCClassifier, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client for %s: %w", addr, err)
	}
	return &GRPCClassifier{
		conn:   conn,
		client: classifierv1.NewClassifierServiceClient(conn),
	}, nil
}

// Available implements Classifier with a short health probe.
func (c *GRPCClassifier) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	resp, err := c.client.Healthz(probeCtx, &classifierv1.HealthzRequest{})
	if err != nil {
		slog.Debug("Classifier health probe failed", "error", err)
		return false
	}
	return resp.Available
}

// ClassifyBatch implements Classifier.
func (c *GRPCClassifier) ClassifyBatch(ctx context.Context, sites []models.SiteContent) (map[string]models.Classification, error) {
	req := &classifierv1.ClassifyBatchRequest{
		Sites: make([]*classifierv1.SiteContent, len(sites)),
	}
	for i, s := range sites {
		req.Sites[i] = &classifierv1.SiteContent{
			PageId:      s.PageID,
			PageName:    s.PageName,
			Website:     s.Website,
			Title:       s.Title,
			Description: s.Description,
			H1:          s.H1,
			Keywords:    s.Keywords,
		}
	}

	resp, err := c.client.ClassifyBatch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("gRPC ClassifyBatch call failed: %w", err)
	}

	out := make(map[string]models.Classification, len(resp.Results))
	for _, r := range resp.Results {
		out[r.PageId] = models.Classification{
			Category:    r.Category,
			Subcategory: r.Subcategory,
			Confidence:  r.Confidence,
			Error:       r.Error,
		}
	}
	return out, nil
}

// Close releases the gRPC connection.
func (c *GRPCClassifier) Close() error {
	return c.conn.Close()
}
