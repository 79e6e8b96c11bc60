package usecase

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/sameerkhansf/vapi-takehome/usecase"

var tracer = otel.Tracer(scopeName)
