package models

// Requests for brain HTTP endpoints. Defined in domain for consistency and reuse.

type LoopRequest struct {
	Name string `param:"name" json:"name" validate:"required,oneof=brain scanner agent"`
}

type AccuracyRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
}

type RecentPatternsRequest struct {
	Limit int `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=100"`
}

type PatternPerformanceRequest struct {
	Name string `query:"name" json:"name"`
}

type SymbolRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=32"`
}

type LogsRequest struct {
	Limit int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
	Level string `query:"level" json:"level" validate:"omitempty,oneof=INFO WARNING ERROR"`
}
