package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

// signature derives a stable cache key from the invocation list and the
// request parameters that affect the rendered graph. Arguments feed node
// content, so they are part of the key; encoding/json sorts map keys,
// which keeps the encoding stable across runs.
func signature(invs []schema.ToolInvocation, currentStep int, lang, userQuery string) string {
	var b strings.Builder
	for _, inv := range invs {
		args, err := json.Marshal(inv.Arguments)
		if err != nil {
			args = []byte(fmt.Sprintf("%v", inv.Arguments))
		}
		fmt.Fprintf(&b, "%d:%s:%s:%s:%s|",
			inv.ExecutionOrder, inv.Name, inv.Status, args, inv.Error)
	}
	fmt.Fprintf(&b, "step=%d|lang=%s|q=%s", currentStep, lang, userQuery)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}
