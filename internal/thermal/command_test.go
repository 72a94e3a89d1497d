package thermal

import "testing"

func TestCommandKindConstantsAreDistinct(t *testing.T) {
	kinds := map[CommandKind]bool{
		CommandUpdatePid: true, CommandUpdateSetpoint: true,
		CommandStop: true, CommandResume: true,
	}
	if len(kinds) != 4 {
		t.Fatalf("expected 4 distinct command kinds, got %d", len(kinds))
	}
}
