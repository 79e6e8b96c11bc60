package api

import "github.com/sameerkhansf/vapi-takehome/domain/repositories"

// ErrorResponse represents an error response sent before a stream starts
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// VoicesResponse lists the voices the synthesis provider offers
type VoicesResponse struct {
	Language string               `json:"language,omitempty"`
	Voices   []repositories.Voice `json:"voices"`
}
