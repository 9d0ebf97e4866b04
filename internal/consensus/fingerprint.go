package consensus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"dev.consensus.engine/internal/models"
)

// Fingerprint computes the deterministic cache key and analytics correlator
// spec.md §3 invariant 5 defines: SHA-256 over the tuple (lower-cased
// stripped question, sorted model ids, sorted roles, method, temperature
// rounded to 2dp, chain flags).
func Fingerprint(req *models.ConsensusRequest) string {
	question := strings.ToLower(strings.TrimSpace(req.Question))

	modelIDs := append([]string(nil), req.SelectedModelIDs...)
	sort.Strings(modelIDs)

	roles := append([]string(nil), req.Roles...)
	sort.Strings(roles)

	h := sha256.New()
	fmt.Fprintf(h, "q=%s\n", question)
	fmt.Fprintf(h, "models=%s\n", strings.Join(modelIDs, ","))
	fmt.Fprintf(h, "roles=%s\n", strings.Join(roles, ","))
	fmt.Fprintf(h, "method=%s\n", req.Method)
	fmt.Fprintf(h, "temp=%s\n", strconv.FormatFloat(req.Temperature, 'f', 2, 64))
	fmt.Fprintf(h, "cot=%t\n", req.EnableChainOfThought)
	fmt.Fprintf(h, "reasoning=%s\n", req.ReasoningMethod)
	fmt.Fprintf(h, "chain_depth=%d\n", req.ChainDepth)

	return hex.EncodeToString(h.Sum(nil))
}

// TextHash computes the embedding-cache key spec.md §4.2 defines:
// emb:<sha256(text)>; TextHash returns the hex digest, the emb: prefix is
// applied by the cache layer.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
