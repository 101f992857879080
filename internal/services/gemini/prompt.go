package gemini

import "fmt"

// ConversionPrompt captures the instructions sent to the model when converting
// a legacy audit.js test file into testharness.js form. Keep updates
// centralized here so it is easy to tweak without hunting through call sites.
const ConversionPrompt = `
You are an expert Chromium WebAudio engineer. Perform a strict, mechanical conversion
of the provided legacy ` + "`audit.js`" + `-based test file into an equivalent ` + "`testharness.js`" + `
file. DO NOT add explanations, new behavior, tests, or examples. Output only the full
converted file content -- nothing else.

MANDATORY RULES (apply every point exactly once; do not add extra code or commentary):

1. Preserve comments exactly as they appear in the original file. Do not modify, move,
   or delete any comment text or formatting.

2. Preserve original function, variable, and constant names exactly as they are.
   - Only rename identifiers when the original name is clearly and unambiguously
     too vague (for example a single-letter variable used widely with ambiguous intent).
   - If you rename to improve clarity, do so minimally and do NOT add inline comments
     or extra explanatory text.

3. Use ` + "`const`" + ` for values that are immutable; otherwise use ` + "`let`/`var`" + ` as appropriate
   to keep semantics unchanged.

4. Replace legacy factory calls with modern constructors where equivalent constructors
   exist (e.g., prefer ` + "`new AudioBuffer(...)`" + ` over deprecated factory helpers).

5. Keep Chromium test support files intact. Do NOT remove or change references to
   helper infrastructure (audit-util.js, audioparam-testing.js, etc.). The only allowed
   removal is the test runner dependency on ` + "`audit.js`" + ` itself -- remove references to
   ` + "`audit.js`" + ` and convert runner-specific calls accordingly.

6. Replace ` + "`should()`" + `/audit-runner-specific assertions with testharness equivalents,
   preserving assertion semantics exactly.

7. Replace ` + "`.beConstantValueOf(x)`" + ` occurrences with:
   ` + "`assert_array_equals(actual, new Float32Array(actual.length).fill(x), desc)`" + `

8. When a promise chain wraps a ` + "`context.startRendering()`" + ` or similar API, convert to
   ` + "`await`" + ` form while preserving behavior.

9. Where the test body is entirely synchronous (no ` + "`await`" + `, no Promises, no asynchronous
   helpers), use the synchronous ` + "`test()`" + ` form. Where the body needs async, use ` + "`async`" + `
   and ` + "`await`" + ` idioms used in WPT.

10. Prefer arrow function syntax for anonymous functions where it's a safe,
    behavior-neutral mechanical replacement. Do not change ` + "`this`" + `-sensitive functions
    where arrow functions would alter semantics.

11. Use template string literals instead of string concatenation where that is a direct
    mechanical replacement and preserves semantics.

12. Merge tests only when they rely on shared initialized state across test bodies such
    that conversion would create ordering hazards. Do not invent new test logic beyond
    merging to preserve execution order.

13. Do not add or remove helper files, new dependencies, or test assertions except as
    required to migrate away from ` + "`audit.js`" + ` runner calls.

14. DO NOT add inline commentary, logging, or metadata into the produced file. The
    converted file must be a valid testharness.js test file and nothing else.

If any transformation is ambiguous, default to preserving original behavior and names.
Now: convert the file content (which follows) into the new file content and return only
the converted file (no explanation, no metadata, no leading/trailing whitespace).
`

// BuildConversionRequest assembles the full request text for one file: the
// fixed instruction block, the target path, and the original content.
func BuildConversionRequest(path, original string) string {
	return fmt.Sprintf(
		"%s\n\nFile path: %s\nOriginal file content below (begin):\n---\n%s\n---\nProvide the full converted file content now. ONLY the file content -- no commentary.\n",
		ConversionPrompt, path, original,
	)
}
