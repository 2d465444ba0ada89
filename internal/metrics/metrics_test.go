package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPrimitive(t *testing.T) {
	before := testutil.ToFloat64(PrimitiveExecutions.WithLabelValues("test_kind"))
	failed := testutil.ToFloat64(PrimitiveFailures.WithLabelValues("test_kind"))

	RecordPrimitive("test_kind", 5*time.Millisecond, nil)
	RecordPrimitive("test_kind", 7*time.Millisecond, errors.New("boom"))

	assert.InDelta(t, before+2, testutil.ToFloat64(PrimitiveExecutions.WithLabelValues("test_kind")), 0)
	assert.InDelta(t, failed+1, testutil.ToFloat64(PrimitiveFailures.WithLabelValues("test_kind")), 0)
}

func TestRecordRepack(t *testing.T) {
	before := testutil.ToFloat64(Repacks.WithLabelValues("weights", "build"))
	RecordRepack("weights", "build")
	assert.InDelta(t, before+1, testutil.ToFloat64(Repacks.WithLabelValues("weights", "build")), 0)
}

func TestRecordExecution(t *testing.T) {
	before := testutil.ToFloat64(PlanExecutions.WithLabelValues("compiled"))
	RecordExecution("compiled", 12)
	assert.InDelta(t, before+1, testutil.ToFloat64(PlanExecutions.WithLabelValues("compiled")), 0)
}

func TestRecordLoweringError(t *testing.T) {
	before := testutil.ToFloat64(LoweringErrors.WithLabelValues("conv", "unsupported"))
	RecordLoweringError("conv", "unsupported")
	RecordLoweringError("conv", "unsupported")
	assert.InDelta(t, before+2, testutil.ToFloat64(LoweringErrors.WithLabelValues("conv", "unsupported")), 0)
}
