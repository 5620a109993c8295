package handler

import (
	familydomain "family-circle-go/internal/domain/family"
	"family-circle-go/pkg/logger"
)

const defaultMaxImageBytes = 10 << 20

type Handlers struct {
	Families      *familydomain.Service
	log           logger.Logger
	maxImageBytes int64
}

func New(families *familydomain.Service, log logger.Logger, maxImageBytes int64) *Handlers {
	if log == nil {
		log = logger.NewNop()
	}
	if maxImageBytes <= 0 {
		maxImageBytes = defaultMaxImageBytes
	}
	return &Handlers{
		Families:      families,
		log:           log,
		maxImageBytes: maxImageBytes,
	}
}
