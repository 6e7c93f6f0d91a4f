package model

import "time"

type EmbeddedRecord struct {
	ID           int64
	Title        string
	URL          string
	Embedding    []float32
	SourcePostID int64
	CreatedAt    time.Time
}

type ClusterAssignment struct {
	EmbeddingID int64
	ClusterIdx  int32
}

type ClusterTitle struct {
	ClusterIdx int32
	Title      string
}
