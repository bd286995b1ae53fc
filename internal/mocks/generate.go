// Package mocks provides gomock implementations of the collaborator
// interfaces used by the job state machine and the batch orchestrator.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	gen := mocks.NewMockGenerator(ctrl)
//	gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("raw report", nil)
package mocks

// Stage 1 and stage 2 of report generation.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=generator_mock.go github.com/jonathan/prospect-reports/internal/job Generator
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=formatter_mock.go github.com/jonathan/prospect-reports/internal/job Formatter

// Outcome persistence used by the orchestrator.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=store_mock.go github.com/jonathan/prospect-reports/internal/pipeline Store
