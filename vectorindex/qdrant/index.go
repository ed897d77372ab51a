package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/poiesic/hnindex/core"
	"github.com/poiesic/hnindex/vectorindex"
)

// Payload keys written with every point.
const (
	payloadVectorID   = "vector_id"
	payloadItemID     = "item_id"
	payloadTitle      = "title"
	payloadURL        = "url"
	payloadChunkIndex = "chunk_index"
	payloadText       = "text"
)

// Config configures the Qdrant gRPC connection.
type Config struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334
	Port int

	// APIKey is the optional API key for authentication.
	APIKey string

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int

	// RequestTimeout bounds each call to the server.
	// Default: 30 seconds
	RequestTimeout time.Duration
}

// DefaultConfig returns defaults for a local Qdrant.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           6334,
		MaxMessageSize: 50 * 1024 * 1024,
		RequestTimeout: 30 * time.Second,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("invalid max message size: %d (must be > 0)", c.MaxMessageSize)
	}
	return nil
}

// pointsAPI is the subset of *qdrant.Client the index uses.
type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

var _ pointsAPI = (*qdrant.Client)(nil)

// Index implements vectorindex.Index with one Qdrant collection per index name.
type Index struct {
	api     pointsAPI
	timeout time.Duration
	logger  *slog.Logger

	mu         sync.RWMutex
	dimensions map[string]int
}

var _ vectorindex.Index = (*Index)(nil)

// New connects to Qdrant.
func New(cfg *Config) (*Index, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid config: %w", vectorindex.ErrIndexUnavailable, err)
	}

	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	}
	// For non-TLS connections, explicitly set insecure credentials
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vectorindex.ErrIndexUnavailable, err)
	}

	idx := newIndex(client, cfg.RequestTimeout)
	idx.logger.Debug("qdrant client created", "host", cfg.Host, "port", cfg.Port)
	return idx, nil
}

func newIndex(api pointsAPI, timeout time.Duration) *Index {
	return &Index{
		api:        api,
		timeout:    timeout,
		logger:     slog.Default().With("component", "qdrant"),
		dimensions: make(map[string]int),
	}
}

// Close closes the gRPC connection.
func (i *Index) Close() error {
	return i.api.Close()
}

// EnsureIndex creates the collection if it does not exist.
func (i *Index) EnsureIndex(ctx context.Context, spec vectorindex.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	metric, _ := vectorindex.ParseMetric(string(spec.Metric))

	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	exists, err := i.api.CollectionExists(ctx, spec.Name)
	if err != nil {
		return fmt.Errorf("%w: checking collection %s: %w", vectorindex.ErrIndexUnavailable, spec.Name, err)
	}
	if !exists {
		err = i.api.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: spec.Name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(spec.Dimension),
				Distance: distance(metric),
			}),
		})
		// Another run may have created it between the check and the create
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("%w: creating collection %s: %w", vectorindex.ErrIndexUnavailable, spec.Name, err)
		}
		if err == nil {
			i.logger.Info("created collection", "collection", spec.Name, "dimension", spec.Dimension, "metric", metric)
		}
	}

	i.mu.Lock()
	i.dimensions[spec.Name] = spec.Dimension
	i.mu.Unlock()
	return nil
}

// Upsert writes records as points keyed by core.PointID of their vector id
// and waits for Qdrant to apply them.
func (i *Index) Upsert(ctx context.Context, name string, records []core.EmbeddedVector) error {
	if len(records) == 0 {
		return nil
	}

	i.mu.RLock()
	dim := i.dimensions[name]
	i.mu.RUnlock()

	points := make([]*qdrant.PointStruct, len(records))
	for n := range records {
		if err := core.ValidateVector(&records[n], dim); err != nil {
			return fmt.Errorf("%w: %w", vectorindex.ErrIndexWrite, err)
		}
		points[n] = toPoint(&records[n])
	}

	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	res, err := i.api.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", vectorindex.ErrIndexWrite, err)
	}
	if res != nil && res.GetStatus() != qdrant.UpdateStatus_Completed {
		return fmt.Errorf("%w: upsert status %s", vectorindex.ErrIndexWrite, res.GetStatus())
	}
	return nil
}

// Query returns the topK points nearest to vector with their metadata.
func (i *Index) Query(ctx context.Context, name string, vector []float32, topK int) ([]core.SearchHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	res, err := i.api.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		switch {
		case status.Code(err) == codes.NotFound:
			return nil, fmt.Errorf("%w: %s", vectorindex.ErrIndexNotFound, name)
		case isUnavailable(err):
			return nil, fmt.Errorf("%w: %w", vectorindex.ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}

	hits := make([]core.SearchHit, 0, len(res))
	for _, p := range res {
		hits = append(hits, fromScoredPoint(p))
	}
	return hits, nil
}

func (i *Index) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, i.timeout)
}

func distance(m vectorindex.Metric) qdrant.Distance {
	switch m {
	case vectorindex.Dot:
		return qdrant.Distance_Dot
	case vectorindex.Euclidean:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

func toPoint(v *core.EmbeddedVector) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(core.PointID(v.ID)),
		Vectors: qdrant.NewVectors(v.Values...),
		Payload: map[string]*qdrant.Value{
			payloadVectorID:   qdrant.NewValueString(v.ID),
			payloadItemID:     qdrant.NewValueInt(int64(v.Metadata.ItemID)),
			payloadTitle:      qdrant.NewValueString(v.Metadata.Title),
			payloadURL:        qdrant.NewValueString(v.Metadata.URL),
			payloadChunkIndex: qdrant.NewValueInt(int64(v.Metadata.ChunkIndex)),
			payloadText:       qdrant.NewValueString(v.Metadata.Text),
		},
	}
}

func fromScoredPoint(p *qdrant.ScoredPoint) core.SearchHit {
	payload := p.GetPayload()
	hit := core.SearchHit{
		VectorID: payload[payloadVectorID].GetStringValue(),
		Score:    p.GetScore(),
		Metadata: core.VectorMetadata{
			ItemID:     core.ID(payload[payloadItemID].GetIntegerValue()),
			Title:      payload[payloadTitle].GetStringValue(),
			URL:        payload[payloadURL].GetStringValue(),
			ChunkIndex: int(payload[payloadChunkIndex].GetIntegerValue()),
			Text:       payload[payloadText].GetStringValue(),
		},
	}
	if hit.VectorID == "" && hit.Metadata.ItemID != 0 {
		hit.VectorID = core.VectorID(hit.Metadata.ItemID, hit.Metadata.ChunkIndex)
	}
	return hit
}

// isUnavailable reports whether err is a gRPC error meaning the server could
// not be reached in time.
func isUnavailable(err error) bool {
	var se interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &se) {
		return false
	}
	switch se.GRPCStatus().Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}
