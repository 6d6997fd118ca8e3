// Package rag implements the retrieval-augmented generation pipeline
// that turns raw documents into indexed knowledge and answers questions
// grounded in it.
//
// The pipeline has two halves. Ingestion runs once per document:
//
//	file or URL
//	    |
//	    v
//	+--------+     +----------+     +---------------+
//	| Loader | --> | Splitter | --> | knowledge.Store|
//	+--------+     +----------+     +---------------+
//	 extract        chunk with       embed + persist
//	 plain text     overlap          (one asset)
//
// Retrieval runs once per question, driven by a Session:
//
//	question --> condense --> retrieve top-k chunks --> generate answer
//	             (only for                              (context stuffed
//	              follow-ups)                            into the prompt)
//
// The Loader understands plain text, Markdown, PDF, DOCX and HTML
// sources as well as remote URLs. The Splitter packs separator-delimited
// parts into chunks of a target rune size with a configurable overlap so
// neighbouring chunks share context. The Indexer ties loading, splitting
// and storage together and owns cleanup when a step fails partway.
//
// A Session keeps the exchange history for one conversation over one
// indexed asset. Follow-up questions are first condensed into standalone
// questions so retrieval works without the conversational context.
// Sessions are not safe for concurrent use; callers serialize turns.
package rag
