package processing

import "github.com/sctg-development/photoacoustic-go/internal/errors"

// ValidationErrorKind distinguishes the graph-build failure modes spec.md
// §4.1 requires distinct error kinds for.
type ValidationErrorKind string

const (
	ErrUnknownNodeType      ValidationErrorKind = "unknown_node_type"
	ErrDuplicateNodeID      ValidationErrorKind = "duplicate_node_id"
	ErrUnknownEdgeEndpoint  ValidationErrorKind = "unknown_edge_endpoint"
	ErrFanInNotAllowed      ValidationErrorKind = "fan_in_not_allowed"
	ErrCycleDetected        ValidationErrorKind = "cycle_detected"
	ErrTypeMismatch         ValidationErrorKind = "type_mismatch"
	ErrNoInputNode          ValidationErrorKind = "no_input_node"
	ErrUnreachableOutput    ValidationErrorKind = "unreachable_output"
)

// ValidationError wraps a ValidationErrorKind as a CategorizedError so
// build-time failures are distinguishable programmatically, per spec.md
// §4.1 ("MUST fail with distinct error kinds").
type ValidationError struct {
	Kind    ValidationErrorKind
	Detail  string
	NodeID  string
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return string(e.Kind) + ": " + e.Detail + " (node " + e.NodeID + ")"
	}
	return string(e.Kind) + ": " + e.Detail
}

func (e *ValidationError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryGraphValidation
}

func newValidationError(kind ValidationErrorKind, nodeID, detail string) *ValidationError {
	return &ValidationError{Kind: kind, Detail: detail, NodeID: nodeID}
}
