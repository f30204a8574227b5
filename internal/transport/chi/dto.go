package chi

import (
	"time"

	"github.com/kailas-cloud/storaged/internal/domain/chat"
	"github.com/kailas-cloud/storaged/internal/domain/graph"
	"github.com/kailas-cloud/storaged/internal/domain/value"
	"github.com/kailas-cloud/storaged/internal/domain/vector"
)

type okResponse struct {
	OK bool `json:"ok"`
}

type deletedResponse struct {
	OK      bool `json:"ok"`
	Deleted int  `json:"deleted"`
}

func deleted(ok bool) deletedResponse {
	if ok {
		return deletedResponse{OK: true, Deleted: 1}
	}
	return deletedResponse{OK: true}
}

// --- vector ---

type ensureCollectionRequest struct {
	Dim    int    `json:"dim"`
	Metric string `json:"metric"`
}

type collectionResponse struct {
	Name   string `json:"name"`
	Dim    int    `json:"dim"`
	Metric string `json:"metric"`
}

type vectorItem struct {
	ID        string       `json:"id"`
	Embedding []float32    `json:"embedding"`
	Metadata  value.Fields `json:"metadata"`
}

type upsertRequest struct {
	Items []vectorItem `json:"items"`
}

func (r upsertRequest) toDomain() []vector.Item {
	items := make([]vector.Item, len(r.Items))
	for i, it := range r.Items {
		md := it.Metadata
		if md == nil {
			md = value.Fields{}
		}
		items[i] = vector.Item{ID: it.ID, Embedding: it.Embedding, Metadata: md}
	}
	return items
}

type queryRequest struct {
	Embedding []float32 `json:"embedding"`
	K         *int      `json:"k"`
}

type queryResult struct {
	ID       string       `json:"id"`
	Score    float64      `json:"score"`
	Metadata value.Fields `json:"metadata"`
}

type queryResponse struct {
	Results []queryResult `json:"results"`
}

func queryResponseFrom(ms []vector.Match) queryResponse {
	out := make([]queryResult, len(ms))
	for i, m := range ms {
		out[i] = queryResult{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return queryResponse{Results: out}
}

type deleteVectorsRequest struct {
	IDs *[]string `json:"ids"`
}

// --- chat ---

type appendRequest struct {
	Message *newMessage `json:"message"`
}

type newMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type message struct {
	ThreadID  string `json:"thread_id"`
	Seq       int64  `json:"seq"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"ts"`
}

func messageFrom(m chat.Message) message {
	return message{
		ThreadID:  m.ThreadID,
		Seq:       m.Seq,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

type appendResponse struct {
	OK      bool    `json:"ok"`
	Message message `json:"message"`
}

type listResponse struct {
	Messages   []message `json:"messages"`
	NextCursor *int64    `json:"next_cursor,omitempty"`
}

func listResponseFrom(p chat.Page) listResponse {
	out := listResponse{Messages: make([]message, len(p.Messages))}
	for i, m := range p.Messages {
		out.Messages[i] = messageFrom(m)
	}
	if p.NextCursor > 0 {
		c := p.NextCursor
		out.NextCursor = &c
	}
	return out
}

// --- graph ---

type entity struct {
	ID    string       `json:"id"`
	Type  string       `json:"type"`
	Props value.Fields `json:"props"`
}

func (e entity) toDomain() graph.Entity {
	props := e.Props
	if props == nil {
		props = value.Fields{}
	}
	return graph.Entity{ID: e.ID, Type: e.Type, Props: props}
}

type relation struct {
	SrcID   string       `json:"src_id"`
	DstID   string       `json:"dst_id"`
	RelType string       `json:"rel_type"`
	Props   value.Fields `json:"props"`
}

func (r relation) toDomain() graph.Relation {
	props := r.Props
	if props == nil {
		props = value.Fields{}
	}
	return graph.Relation{SrcID: r.SrcID, DstID: r.DstID, RelType: r.RelType, Props: props}
}

type relationKey struct {
	SrcID   string `json:"src_id"`
	DstID   string `json:"dst_id"`
	RelType string `json:"rel_type"`
}

type neighbor struct {
	Entity    entity   `json:"entity"`
	Relation  relation `json:"relation"`
	Direction string   `json:"direction"`
}

type neighborsResponse struct {
	Neighbors []neighbor `json:"neighbors"`
}

func neighborsResponseFrom(ns []graph.Neighbor) neighborsResponse {
	out := make([]neighbor, len(ns))
	for i, n := range ns {
		out[i] = neighbor{
			Entity: entity{ID: n.Entity.ID, Type: n.Entity.Type, Props: n.Entity.Props},
			Relation: relation{
				SrcID:   n.Relation.SrcID,
				DstID:   n.Relation.DstID,
				RelType: n.Relation.RelType,
				Props:   n.Relation.Props,
			},
			Direction: string(n.Direction),
		}
	}
	return neighborsResponse{Neighbors: out}
}

// --- health ---

type readyCheck struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
}

type readyResponse struct {
	Status string                `json:"status"`
	Checks map[string]readyCheck `json:"checks"`
}
