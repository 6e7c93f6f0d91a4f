package cluster

import "errors"

var (
	// ErrConfiguration is returned when a required setting is missing or unusable,
	// including a cluster count the data cannot satisfy.
	ErrConfiguration = errors.New("cluster: configuration error")

	// ErrInsufficientData is returned when there are no records to cluster.
	ErrInsufficientData = errors.New("cluster: no records to cluster")

	// ErrLabelGeneration is returned when a cluster title could not be produced.
	// It wraps llm.ErrMalformedLabel when the model answered with nothing usable.
	ErrLabelGeneration = errors.New("cluster: label generation failed")
)
