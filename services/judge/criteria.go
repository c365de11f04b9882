package judge

// Criterion names. These are shared with the backend's boolean
// indicators and appear verbatim in comparison artifacts.
const (
	CriterionQuestionAnswered = "is_question_answered"
	CriterionNeedsMoreInfo    = "requires_additional_information"
	CriterionSpeculative      = "is_speculative"
	CriterionConfident        = "is_confident"
)

// Criterion defines one judged property of an answer.
type Criterion struct {
	// Name is the wire name shared with the backend indicator.
	Name string
	// Description is the judging instruction given to the model.
	Description string
	// Steps are followed in order when judging.
	Steps []string
	// UsesQuestion includes the question in the judge prompt. Criteria
	// that only inspect the answer's phrasing see the answer alone.
	UsesQuestion bool
}

// DefaultCriteria returns the four criteria matching the backend
// evaluation, in canonical order.
func DefaultCriteria() []Criterion {
	return []Criterion{
		{
			Name: CriterionQuestionAnswered,
			Description: `Determine whether the ANSWER directly and reasonably addresses the main intent of ALL significant parts of the QUESTION.

Set to 1.0 (True) if:
- The ANSWER provides relevant information that directly responds to the question's core intent
- For multi-part questions, ALL significant parts are addressed
- Special case: If the ANSWER states the information is absent from the document BUT provides concrete factual alternatives from the document (e.g., 'The document does not specify X. Instead, it specifies Y'), consider the question answered

Set to 0.0 (False) if:
- The ANSWER is off-topic or incomplete
- The ANSWER misses the central point of the question
- The ANSWER only states information is not in the document without providing alternatives
- For multi-part questions, some parts are unanswered`,
			Steps: []string{
				"Identify all significant parts of the QUESTION",
				"Check if each part is addressed in the ANSWER",
				"Determine if 'document does not provide' is supplemented with factual alternatives",
				"Return 1.0 if all parts addressed, 0.0 otherwise",
			},
			UsesQuestion: true,
		},
		{
			Name: CriterionNeedsMoreInfo,
			Description: `Determine whether the ANSWER explicitly requests or requires additional details from the USER.

Set to 1.0 (True) if the ANSWER contains:
- Explicit requests: 'please provide', 'I need', 'could you share', 'what is the [missing field]?'
- Statements indicating the question lacks necessary context that the user could supply
- Requests for clarification like 'more context is needed to answer'

Set to 0.0 (False) if:
- The ANSWER does not request any additional information from the user
- The ANSWER simply states information is not in the provided document (this is NOT a request for user input)

IMPORTANT: Do NOT set to 1.0 merely because the answer cannot be found in the provided document. Only set to 1.0 if the ANSWER explicitly asks the user for more information.`,
			Steps: []string{
				"Search for explicit requests in the ANSWER ('please provide', 'I need', etc.)",
				"Check if ANSWER asks for clarification or more context from the user",
				"Distinguish between 'document does not have this' vs 'user needs to provide this'",
				"Return 1.0 if explicit request found, 0.0 otherwise",
			},
		},
		{
			Name: CriterionSpeculative,
			Description: `Determine whether the ANSWER uses assumptions, hypothetical, or inferential language beyond facts.

Set to 1.0 (True) if the ANSWER contains speculative/hedging words:
- Uncertainty markers: 'might', 'could', 'possibly', 'probably', 'seems', 'appears'
- Inferential language: 'assuming', 'I suspect', 'likely', 'would'
- Conditional language: 'if', 'may', 'perhaps'

Set to 0.0 (False) if:
- The ANSWER strictly reports facts from the provided text
- The ANSWER explicitly states the text lacks the information (e.g., 'The document does not provide this')
- The ANSWER uses assertive, fact-based language without hedging

Note: An answer that says 'The document does not provide this information' is NOT speculative unless it uses hedging words.`,
			Steps: []string{
				"Search for speculative/hedging words in the ANSWER",
				"Check for assumptions or hypothetical language",
				"Verify if ANSWER is fact-based or contains inference",
				"Return 1.0 if speculative language found, 0.0 otherwise",
			},
		},
		{
			Name: CriterionConfident,
			Description: `Determine whether the ANSWER is phrased directly and assertively.

Set to 1.0 (True) if the ANSWER uses:
- Direct statements: 'Yes, X is...', 'No, the document states...', 'The text indicates...'
- Assertive phrasing: 'The document specifies...', 'According to the text...'
- Definitive tone even when reporting absence: 'The document does not provide this information' (assertive)

Set to 0.0 (False) if the ANSWER uses:
- Uncertain phrasing: 'It seems like', 'I think', 'It could be'
- Hedging language: 'maybe', 'perhaps', 'possibly'
- Tentative tone: 'It appears', 'It might be'

Note: An assertive statement that reports 'document does not provide this' should be 1.0 (True) unless hedged with uncertain language.`,
			Steps: []string{
				"Analyze the tone and phrasing of the ANSWER",
				"Check for assertive vs uncertain language",
				"Determine if ANSWER is direct and definitive",
				"Return 1.0 if confident/assertive, 0.0 if uncertain/hedging",
			},
		},
	}
}

// CriterionNames returns the criterion names in canonical order.
func CriterionNames() []string {
	return []string{
		CriterionQuestionAnswered,
		CriterionNeedsMoreInfo,
		CriterionSpeculative,
		CriterionConfident,
	}
}

// CriterionByName looks up a default criterion by its wire name.
func CriterionByName(name string) (Criterion, bool) {
	for _, c := range DefaultCriteria() {
		if c.Name == name {
			return c, true
		}
	}
	return Criterion{}, false
}
