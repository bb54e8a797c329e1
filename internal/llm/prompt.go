package llm

import "fmt"

// The prompts instruct the model to answer using only the supplied
// context. Nothing enforces that programmatically; the instruction is
// the contract.

const answerFormatInstruction = `You are an AI assistant tasked with providing structured, accurate answers based solely on the provided documents. Follow this format for your response:

1. **Documents Referenced**: List the documents used to answer the question (by filename or ID). If no documents are relevant, state "No relevant documents found."
2. **User Question**: Restate the user's question verbatim.
3. **Answer**: Provide a comprehensive and detailed answer based only on the documents. Include all relevant information, context, and nuances from the documents. Elaborate on key points, provide examples if available, and explain concepts thoroughly. If the documents do not contain the answer, state: "The provided documents do not contain sufficient information to answer this question" and explain what specific aspects are missing.
4. **Conclusion**: Summarize the key points from your detailed answer in a concise manner. Highlight the most important findings or confirm that no answer was found in the documents.

Do not invent or improvise information. If the answer is not in the documents, be honest and clear about it.`

// answerPrompt builds the single-message prompt used by the
// chat-completions style backend, folding the format instruction and
// the retrieved context into the user turn.
func answerPrompt(contextStr, query string) string {
	return fmt.Sprintf(`Based on the following documents:
%s

User question: %s

Please provide a structured response with the following sections:
1. **Documents Referenced**: List the documents or state if none are relevant.
2. **User Question**: Restate the user's question.
3. **Answer**: Provide a comprehensive and detailed answer based solely on the documents. Include all relevant information, context, and nuances from the documents. If the documents do not contain the answer, state clearly that the information is not available.
4. **Conclusion**: Summarize the key points from your detailed answer in a concise manner.`, contextStr, query)
}

// documentsPrompt is the user-turn body for backends that take the
// format instruction through a separate system prompt.
func documentsPrompt(contextStr, query string) string {
	return fmt.Sprintf("Documents:\n%s\n\nUser Question: %s", contextStr, query)
}

func titlePrompt(query, response string) string {
	return fmt.Sprintf(`Generate a concise title (5-10 words) that summarizes the conversation.

**User Question**: %s
**AI Response**: %s

Return only the title as a string.`, query, response)
}
