package analysis

import (
	"sort"

	"github.com/dkoval/facescout/internal/ai"
)

// NormalizeVerdict converts the model's raw output into a Verdict that
// honors the data-model invariants:
//   - is_present=false forces an empty identification list
//   - timestamps outside [0, duration] are filtered out
//   - timestamps are sorted ascending and deduplicated
//   - boxes violating the normalized-box invariant are dropped, their
//     timestamp is retained
//   - confidence, when reported, is clamped into [0,1]
func NormalizeVerdict(raw *ai.RawVerdict, duration float64) Verdict {
	verdict := Verdict{
		IsPresent:       raw.IsPresent,
		Reason:          raw.Reason,
		Identifications: []Identification{},
	}

	if raw.Confidence != nil {
		c := *raw.Confidence
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		verdict.Confidence = &c
	}

	if !raw.IsPresent {
		return verdict
	}

	verdict.Identifications = normalizeIdentifications(toIdentifications(raw.Identifications), duration)
	return verdict
}

func normalizeIdentifications(idents []Identification, duration float64) []Identification {
	kept := make([]Identification, 0, len(idents))
	for _, ident := range idents {
		if ident.Timestamp < 0 || ident.Timestamp > duration {
			continue
		}
		if ident.Box != nil && !ident.Box.Valid() {
			ident.Box = nil
		}
		kept = append(kept, ident)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp < kept[j].Timestamp
	})

	deduped := kept[:0]
	for _, ident := range kept {
		if len(deduped) > 0 && deduped[len(deduped)-1].Timestamp == ident.Timestamp {
			continue
		}
		deduped = append(deduped, ident)
	}

	return deduped
}
