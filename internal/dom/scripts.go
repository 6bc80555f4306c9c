package dom

// JavaScript run against live elements. Every function is called with `this`
// bound to the element (or to document.documentElement for page scope).

// MatchAttr carries the token MarkScript tags matches with.
const MatchAttr = "data-commentcrawl-match"

// filterBody selects the matches of `match` under `this` that satisfy the
// within/outside ancestor predicates, in document order.
const filterBody = `
	const scope = this;
	const under = (el, sel) => {
		for (let p = el.parentElement; p && p !== scope; p = p.parentElement) {
			if (p.matches(sel)) return true;
		}
		return false;
	};
	return Array.from(this.querySelectorAll(match)).filter(el => {
		if (within && !under(el, within)) return false;
		if (outside && under(el, outside)) return false;
		return true;
	});`

// FilterScript returns the filtered elements themselves.
const FilterScript = `function(match, within, outside) {` + filterBody + `
}`

// MarkScript tags the filtered elements with token in MatchAttr, clearing
// older tags under the scope, and returns how many it tagged. Nodes
// inserted after the call carry no tag.
const MarkScript = `function(match, within, outside, token) {
	const keep = (function(match, within, outside) {` + filterBody + `
	}).call(this, match, within, outside);
	this.querySelectorAll('[` + MatchAttr + `]').forEach(el => el.removeAttribute('` + MatchAttr + `'));
	keep.forEach(el => el.setAttribute('` + MatchAttr + `', token));
	return keep.length;
}`

// TextScript returns the trimmed rendered text.
const TextScript = `function() { return (this.innerText || this.textContent || '').trim(); }`

// VisibleScript mirrors the usual "is displayed" check.
const VisibleScript = `function() {
	if (!this.isConnected) return false;
	const style = window.getComputedStyle(this);
	if (style.visibility === 'hidden' || style.display === 'none') return false;
	return !!(this.offsetWidth || this.offsetHeight || this.getClientRects().length);
}`

// EnabledScript is false only for disabled form controls.
const EnabledScript = `function() { return !this.disabled; }`

// ScrollIntoViewScript aligns the element to the top of the viewport.
const ScrollIntoViewScript = `function() { this.scrollIntoView(true); return true; }`

// ClickScript dispatches a DOM click, which works for covered elements too.
const ClickScript = `function() { this.click(); return true; }`

// ScrollToBottomScript is evaluated as an expression in page context.
const ScrollToBottomScript = `window.scrollTo(0, document.body.scrollHeight)`
