package language

// Directive names from the incremental delivery proposal.
const (
	DeferDirective  = "defer"
	StreamDirective = "stream"
)

// HasIncrementalDirectives reports whether the operation's selection set
// uses @defer or @stream anywhere, including through fragment spreads.
// Fragment cycles are invalid per the GraphQL spec, but the walk guards
// against them anyway since the document is only syntax-checked here.
func HasIncrementalDirectives(doc *QueryDocument, op *OperationDefinition) bool {
	if op == nil {
		return false
	}
	seen := map[string]bool{}
	return selectionSetHasIncremental(doc, op.SelectionSet, seen)
}

func selectionSetHasIncremental(doc *QueryDocument, set SelectionSet, seen map[string]bool) bool {
	for _, sel := range set {
		switch s := sel.(type) {
		case *Field:
			if hasIncrementalDirective(s.Directives) {
				return true
			}
			if selectionSetHasIncremental(doc, s.SelectionSet, seen) {
				return true
			}
		case *InlineFragment:
			if hasIncrementalDirective(s.Directives) {
				return true
			}
			if selectionSetHasIncremental(doc, s.SelectionSet, seen) {
				return true
			}
		case *FragmentSpread:
			if hasIncrementalDirective(s.Directives) {
				return true
			}
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			if frag := doc.Fragments.ForName(s.Name); frag != nil {
				if selectionSetHasIncremental(doc, frag.SelectionSet, seen) {
					return true
				}
			}
		}
	}
	return false
}

func hasIncrementalDirective(list DirectiveList) bool {
	for _, d := range list {
		if d.Name == DeferDirective || d.Name == StreamDirective {
			return true
		}
	}
	return false
}
