package client

import "time"

// Metric is a vector similarity function.
type Metric string

// Supported metrics.
const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

// Collection describes a vector collection.
type Collection struct {
	Name   string `json:"name"`
	Dim    int    `json:"dim"`
	Metric Metric `json:"metric"`
}

// Item is a vector with metadata.
type Item struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Match is one query result.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Role of a chat message author.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a stored chat message.
type Message struct {
	ThreadID  string    `json:"thread_id"`
	Seq       int64     `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}

// Page is one page of a thread, newest first. NextCursor is zero on the
// last page; otherwise pass it as ListOptions.Before.
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor int64     `json:"next_cursor,omitempty"`
}

// ListOptions pages through a thread. Zero values use server defaults.
type ListOptions struct {
	Limit  int
	Before int64
}

// Entity is a graph node.
type Entity struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props,omitempty"`
}

// Relation is a directed, typed edge.
type Relation struct {
	SrcID   string         `json:"src_id"`
	DstID   string         `json:"dst_id"`
	RelType string         `json:"rel_type"`
	Props   map[string]any `json:"props,omitempty"`
}

// Direction of a relation relative to the queried entity.
type Direction string

// Directions.
const (
	DirectionOut Direction = "out"
	DirectionIn  Direction = "in"
)

// Neighbor is an adjacent entity and the relation reaching it.
type Neighbor struct {
	Entity    Entity    `json:"entity"`
	Relation  Relation  `json:"relation"`
	Direction Direction `json:"direction"`
}

// NeighborOptions filters a neighbor query. Zero values use server defaults.
type NeighborOptions struct {
	RelType string
	Limit   int
}

// Readiness is the /readyz report.
type Readiness struct {
	Status string                    `json:"status"`
	Checks map[string]ReadinessCheck `json:"checks"`
}

// ReadinessCheck is the state of one port's backend.
type ReadinessCheck struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
}
