package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/storaged/internal/db"
	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
	"github.com/kailas-cloud/storaged/internal/port"
)

var _ port.VectorPort = (*VectorStore)(nil)

// KEYS[1] meta hash. ARGV dim, metric.
var ensureScript = db.NewScript("vector_ensure", `
local cur = redis.call('HMGET', KEYS[1], 'dim', 'metric')
if cur[1] then
  if cur[1] == ARGV[1] and cur[2] == ARGV[2] then
    return {'exists'}
  end
  return redis.error_reply('CONFLICT ' .. cur[1] .. ' ' .. cur[2])
end
redis.call('HSET', KEYS[1], 'dim', ARGV[1], 'metric', ARGV[2])
return {'created'}
`)

// KEYS[1] meta hash, KEYS[2] items hash. ARGV dim, then id/payload pairs.
var upsertScript = db.NewScript("vector_upsert", `
local dim = redis.call('HGET', KEYS[1], 'dim')
if not dim then
  return redis.error_reply('NOTFOUND collection')
end
if dim ~= ARGV[1] then
  return redis.error_reply('DIM ' .. dim)
end
for i = 2, #ARGV, 2 do
  redis.call('HSET', KEYS[2], ARGV[i], ARGV[i + 1])
end
return {tostring((#ARGV - 1) / 2)}
`)

// KEYS[1] meta hash, KEYS[2] items hash. Returns dim, metric, then id/payload pairs.
var snapshotScript = db.NewScript("vector_snapshot", `
local meta = redis.call('HMGET', KEYS[1], 'dim', 'metric')
if not meta[1] then
  return redis.error_reply('NOTFOUND collection')
end
local out = {meta[1], meta[2]}
local items = redis.call('HGETALL', KEYS[2])
for i = 1, #items do
  out[#out + 1] = items[i]
end
return out
`)

// storedItem is the JSON value kept per item id.
type storedItem struct {
	Embedding []byte          `json:"e"`
	Metadata  json.RawMessage `json:"m"`
}

// VectorStore is a VectorPort on the key-value facade.
type VectorStore struct {
	base
}

// NewVectorStore creates a new VectorStore. prefix namespaces every key.
func NewVectorStore(store Store, prefix string) *VectorStore {
	return &VectorStore{base: base{store: store, prefix: prefix}}
}

func (s *VectorStore) keys(tenant domain.Tenant, name string) (meta, items string) {
	slot := s.slot("vec", tenant, name)
	return slot + ":meta", slot + ":items"
}

func (s *VectorStore) EnsureCollection(ctx context.Context, tenant domain.Tenant, c vector.Collection) error {
	meta, _ := s.keys(tenant, c.Name)
	_, err := s.store.EvalStrings(ctx, ensureScript, []string{meta},
		[]string{strconv.Itoa(c.Dim), string(c.Metric)})

	var se *db.ScriptError
	if asScriptError(err, &se) && se.Code == "CONFLICT" {
		existing, perr := parseSchema(c.Name, se.Message)
		if perr != nil {
			return engineErr("ensure_collection", perr)
		}
		return existing.Conflict(c)
	}
	return engineErr("ensure_collection", err)
}

func (s *VectorStore) DescribeCollection(ctx context.Context, tenant domain.Tenant, name string) (vector.Collection, error) {
	meta, _ := s.keys(tenant, name)
	m, err := s.store.HGetAll(ctx, meta)
	if err != nil {
		return vector.Collection{}, engineErr("describe_collection", err)
	}
	if len(m) == 0 {
		return vector.Collection{}, vector.NotFound(name)
	}
	c, err := parseSchema(name, m["dim"]+" "+m["metric"])
	if err != nil {
		return vector.Collection{}, engineErr("describe_collection", err)
	}
	return c, nil
}

func (s *VectorStore) Upsert(ctx context.Context, tenant domain.Tenant, name string, items []vector.Item) error {
	c, err := s.DescribeCollection(ctx, tenant, name)
	if err != nil {
		return err
	}
	if err := vector.CheckDim(items, c.Dim); err != nil {
		return err
	}

	args := make([]string, 0, 1+2*len(items))
	args = append(args, strconv.Itoa(c.Dim))
	for _, it := range items {
		payload, err := json.Marshal(storedItem{
			Embedding: vector.EncodeBinary(it.Embedding),
			Metadata:  it.Metadata.Encode(),
		})
		if err != nil {
			return engineErr("upsert", err)
		}
		args = append(args, it.ID, string(payload))
	}

	meta, itemsKey := s.keys(tenant, name)
	_, err = s.store.EvalStrings(ctx, upsertScript, []string{meta, itemsKey}, args)

	var se *db.ScriptError
	if asScriptError(err, &se) {
		switch se.Code {
		case "NOTFOUND":
			return vector.NotFound(name)
		case "DIM":
			// Redeclared with another dimension since we read it.
			if dim, perr := strconv.Atoi(se.Message); perr == nil {
				if verr := vector.CheckDim(items, dim); verr != nil {
					return verr
				}
			}
			return domain.NewEngineError(Name, "upsert", err, true)
		}
	}
	return engineErr("upsert", err)
}

func (s *VectorStore) Query(ctx context.Context, tenant domain.Tenant, name string, embedding []float32, k int) ([]vector.Match, error) {
	meta, itemsKey := s.keys(tenant, name)
	reply, err := s.store.EvalStrings(ctx, snapshotScript, []string{meta, itemsKey}, nil)

	var se *db.ScriptError
	if asScriptError(err, &se) && se.Code == "NOTFOUND" {
		return nil, vector.NotFound(name)
	}
	if err != nil {
		return nil, engineErr("query", err)
	}
	if len(reply) < 2 || len(reply)%2 != 0 {
		return nil, engineErr("query", fmt.Errorf("malformed snapshot reply of %d elements", len(reply)))
	}

	c, err := parseSchema(name, reply[0]+" "+reply[1])
	if err != nil {
		return nil, engineErr("query", err)
	}
	if err := vector.ValidateEmbedding("embedding", embedding, c.Dim); err != nil {
		return nil, err
	}

	top := vector.NewTopK(c.Metric, embedding, k)
	for i := 2; i < len(reply); i += 2 {
		var it storedItem
		if err := json.Unmarshal([]byte(reply[i+1]), &it); err != nil {
			return nil, engineErr("query", fmt.Errorf("decoding item %q: %w", reply[i], err))
		}
		emb, err := vector.DecodeBinary(it.Embedding)
		if err != nil {
			return nil, engineErr("query", err)
		}
		md, err := value.Parse(it.Metadata)
		if err != nil {
			return nil, engineErr("query", err)
		}
		top.Add(reply[i], emb, md)
	}
	return top.Result(), nil
}

func (s *VectorStore) DeleteItems(ctx context.Context, tenant domain.Tenant, name string, ids []string) error {
	_, itemsKey := s.keys(tenant, name)
	return engineErr("delete_items", s.store.HDel(ctx, itemsKey, ids...))
}

func (s *VectorStore) DropCollection(ctx context.Context, tenant domain.Tenant, name string) error {
	meta, itemsKey := s.keys(tenant, name)
	return engineErr("drop_collection", s.store.Del(ctx, meta, itemsKey))
}

// parseSchema reads "dim metric" as stored in the meta hash.
func parseSchema(name, s string) (vector.Collection, error) {
	var (
		dim    int
		metric string
	)
	if _, err := fmt.Sscanf(s, "%d %s", &dim, &metric); err != nil {
		return vector.Collection{}, fmt.Errorf("corrupt collection metadata %q: %w", s, err)
	}
	return vector.Collection{Name: name, Dim: dim, Metric: vector.Metric(metric)}, nil
}
