package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("job_code", "ai.execute_actions"),
		attribute.String("company_id", "456"),
		attribute.String("status", "ok"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, a := range attrs {
		if a.Key == "company_id" {
			t.Fatalf("expected high-cardinality company_id to be dropped")
		}
	}
}
