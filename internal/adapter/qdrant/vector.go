// Package qdrant implements the vector port on Qdrant. Each (tenant,
// collection) pair maps to its own Qdrant collection; the collection's
// distance function records the metric.
package qdrant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
	"github.com/kailas-cloud/storaged/internal/port"
)

// Name identifies the qdrant backend.
const Name = "qdrant"

var _ port.VectorPort = (*VectorStore)(nil)

// pointNamespace derives deterministic point UUIDs from item ids.
var pointNamespace = uuid.MustParse("8f1c6a52-3d7e-4b8a-9a53-2b9f7c0e4d11")

const (
	payloadID       = "id"
	payloadMetadata = "metadata"
	maxMessageSize  = 64 << 20
)

// Config holds connection settings.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// VectorStore is a VectorPort on Qdrant. Ranking uses exact search; scores
// are recomputed in float64 from the returned vectors so every backend
// ranks identically.
type VectorStore struct {
	client *qdrant.Client
}

// NewVectorStore connects and runs a health check.
func NewVectorStore(ctx context.Context, cfg Config) (*VectorStore, error) {
	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMessageSize),
				grpc.MaxCallSendMsgSize(maxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}
	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}
	return &VectorStore{client: client}, nil
}

// Close releases the gRPC connection.
func (s *VectorStore) Close() error {
	return s.client.Close()
}

func (s *VectorStore) Name() string { return Name }

func (s *VectorStore) Ping(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	return engineErr("ping", err)
}

// collectionName maps a tenant-scoped collection to a Qdrant collection.
// Hashing keeps arbitrary tenant strings within Qdrant's naming rules.
func collectionName(tenant domain.Tenant, name string) string {
	sum := sha256.Sum256([]byte(string(tenant) + "\x00" + name))
	return "sa_" + hex.EncodeToString(sum[:16])
}

func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

func distance(m vector.Metric) qdrant.Distance {
	if m == vector.Dot {
		return qdrant.Distance_Dot
	}
	return qdrant.Distance_Cosine
}

func metric(d qdrant.Distance) (vector.Metric, error) {
	switch d {
	case qdrant.Distance_Cosine:
		return vector.Cosine, nil
	case qdrant.Distance_Dot:
		return vector.Dot, nil
	default:
		return "", fmt.Errorf("unsupported qdrant distance %s", d)
	}
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.NotFound
}

func (s *VectorStore) EnsureCollection(ctx context.Context, tenant domain.Tenant, c vector.Collection) error {
	qname := collectionName(tenant, c.Name)

	existing, err := s.describe(ctx, qname, c.Name)
	if errors.Is(err, domain.ErrNotFound) {
		cerr := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: qname,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dim),
				Distance: distance(c.Metric),
			}),
		})
		if cerr == nil {
			return nil
		}
		// Lost a creation race: compare against the winner.
		existing, err = s.describe(ctx, qname, c.Name)
		if err != nil {
			return engineErr("ensure_collection", cerr)
		}
	}
	if err != nil {
		return engineErr("ensure_collection", err)
	}
	if !existing.SameSchema(c) {
		return existing.Conflict(c)
	}
	return nil
}

func (s *VectorStore) describe(ctx context.Context, qname, name string) (vector.Collection, error) {
	info, err := s.client.GetCollectionInfo(ctx, qname)
	if isNotFound(err) {
		return vector.Collection{}, vector.NotFound(name)
	}
	if err != nil {
		return vector.Collection{}, err
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return vector.Collection{}, fmt.Errorf("collection %s has no single dense vector config", qname)
	}
	m, err := metric(params.GetDistance())
	if err != nil {
		return vector.Collection{}, err
	}
	return vector.Collection{Name: name, Dim: int(params.GetSize()), Metric: m}, nil
}

func (s *VectorStore) DescribeCollection(ctx context.Context, tenant domain.Tenant, name string) (vector.Collection, error) {
	c, err := s.describe(ctx, collectionName(tenant, name), name)
	if err != nil {
		return vector.Collection{}, engineErr("describe_collection", err)
	}
	return c, nil
}

func (s *VectorStore) Upsert(ctx context.Context, tenant domain.Tenant, name string, items []vector.Item) error {
	qname := collectionName(tenant, name)
	c, err := s.describe(ctx, qname, name)
	if err != nil {
		return engineErr("upsert", err)
	}
	if err := vector.CheckDim(items, c.Dim); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(items))
	for i, it := range items {
		points[i] = &qdrant.PointStruct{
			Id:      pointID(it.ID),
			Vectors: qdrant.NewVectors(it.Embedding...),
			Payload: map[string]*qdrant.Value{
				payloadID:       {Kind: &qdrant.Value_StringValue{StringValue: it.ID}},
				payloadMetadata: {Kind: &qdrant.Value_StringValue{StringValue: string(it.Metadata.Encode())}},
			},
		}
	}

	// One request is one WAL operation: the batch lands as a whole.
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qname,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if isNotFound(err) {
		return vector.NotFound(name)
	}
	return engineErr("upsert", err)
}

func (s *VectorStore) Query(ctx context.Context, tenant domain.Tenant, name string, embedding []float32, k int) ([]vector.Match, error) {
	qname := collectionName(tenant, name)
	c, err := s.describe(ctx, qname, name)
	if err != nil {
		return nil, engineErr("query", err)
	}
	if err := vector.ValidateEmbedding("embedding", embedding, c.Dim); err != nil {
		return nil, err
	}

	var points []*qdrant.ScoredPoint
	for limit := k + 16; ; limit *= 2 {
		points, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: qname,
			Query:          qdrant.NewQuery(embedding...),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
			Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
		})
		if isNotFound(err) {
			return nil, vector.NotFound(name)
		}
		if err != nil {
			return nil, engineErr("query", err)
		}
		if !needMore(scoresOf(points), k, limit) {
			break
		}
	}

	top := vector.NewTopK(c.Metric, embedding, k)
	for _, p := range points {
		id := p.GetPayload()[payloadID].GetStringValue()
		md, err := value.Parse([]byte(p.GetPayload()[payloadMetadata].GetStringValue()))
		if err != nil {
			return nil, engineErr("query", fmt.Errorf("decoding metadata of %q: %w", id, err))
		}
		top.Add(id, p.GetVectors().GetVector().GetDense().GetData(), md)
	}
	return top.Result(), nil
}

func scoresOf(points []*qdrant.ScoredPoint) []float32 {
	out := make([]float32, len(points))
	for i, p := range points {
		out[i] = p.GetScore()
	}
	return out
}

// needMore reports whether a page of limit engine scores may have cut off
// candidates that tie with the k-th result. Engine scores are float32, so
// anything within a small margin of the k-th score counts as a tie.
func needMore(scores []float32, k, limit int) bool {
	if len(scores) < limit || len(scores) < k || k == 0 {
		return false
	}
	kth := float64(scores[k-1])
	last := float64(scores[len(scores)-1])
	margin := 1e-4 * math.Max(1, math.Abs(kth))
	return last >= kth-margin
}

func (s *VectorStore) DeleteItems(ctx context.Context, tenant domain.Tenant, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName(tenant, name),
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pids},
			},
		},
	})
	if isNotFound(err) {
		return nil
	}
	return engineErr("delete_items", err)
}

func (s *VectorStore) DropCollection(ctx context.Context, tenant domain.Tenant, name string) error {
	err := s.client.DeleteCollection(ctx, collectionName(tenant, name))
	if isNotFound(err) {
		return nil
	}
	return engineErr("drop_collection", err)
}

func engineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewEngineError(Name, op, err, isTransient(err))
}

// isTransient reports whether a gRPC failure may succeed on retry.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
