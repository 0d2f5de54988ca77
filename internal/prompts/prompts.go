// Package prompts holds the versioned prompt templates. Each template takes a
// typed parameter record so a missing field fails at render time instead of
// silently producing a broken prompt.
package prompts

import (
	"fmt"
	"strings"
	"text/template"
)

const Version = "v1"

type Template[T any] struct {
	name string
	tmpl *template.Template
}

func newTemplate[T any](name, text string) Template[T] {
	return Template[T]{
		name: name,
		tmpl: template.Must(template.New(name).Option("missingkey=error").Parse(text)),
	}
}

func (t Template[T]) Name() string { return t.name + "@" + Version }

func (t Template[T]) Render(params T) (string, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, params); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", t.Name(), err)
	}
	return sb.String(), nil
}

// MustRender is for templates whose parameters are fully controlled by the caller.
func (t Template[T]) MustRender(params T) string {
	s, err := t.Render(params)
	if err != nil {
		panic(err)
	}
	return s
}

type SummaryParams struct {
	Content string
	Format  string
}

type ToolDescriptionParams struct {
	DocsetName string
	Document   string
}

type AnswerParams struct {
	Context  string
	Question string
}

type SQLGenParams struct {
	Dialect  string
	Table    string
	Schema   string
	Question string
}

type ExplainedQueryParams struct {
	Question string
	SQL      string
	Result   string
}

// FormatHint is what the summary prompts ask the model to produce.
func FormatHint(includeXMLTags bool) string {
	if includeXMLTags {
		return "semantic XML without any namespaces or attributes"
	}
	return "text"
}

const SystemMessageCore = `You are a helpful assistant that answers user queries using the documents available to you. ` +
	`Always ground your answers in the retrieved content, mention which documents the answer came from when you can, ` +
	`and say plainly when the documents do not contain the answer. Keep the tone professional.`

const FullDocumentSummarySystem = `You are a helpful assistant that summarizes long documents. ` +
	`Your summaries keep the key facts, parties, dates and figures and drop boilerplate.`

var FullDocumentSummaryQuery = newTemplate[SummaryParams]("full_document_summary", `Here is a document, in {{.Format}} format:
{{.Content}}

Write a detailed summary of the document above in {{.Format}} format. Respond only with the summary and no other language before or after.`)

const ChunkSummarySystem = `You are a helpful assistant that summarizes short chunks of text taken from larger documents.`

var ChunkSummaryQuery = newTemplate[SummaryParams]("chunk_summary", `Here is a chunk from a document, in {{.Format}} format:
{{.Content}}

Respond only with a summary of the chunk above in {{.Format}} format, with no other language before or after.`)

const ToolDescriptionSystem = `You are a helpful assistant that writes short descriptions of search tools so that an AI agent knows when to use them.`

var ToolDescriptionQuery = newTemplate[ToolDescriptionParams]("tool_description", `Here is a sample of content from a set of documents called "{{.DocsetName}}":
{{.Document}}

In one or two sentences, describe what kind of documents these are and what questions they can answer. Respond only with the description.`)

// ToolDescriptionPrefix is put in front of the generated retrieval tool description.
func ToolDescriptionPrefix(docsetName string) string {
	return fmt.Sprintf("Given a single input 'query' parameter, searches for and returns chunks from %s documents. ", docsetName)
}

var Answer = newTemplate[AnswerParams]("answer", `Context information is below.
---------------------
{{.Context}}
---------------------
Given the context information and not prior knowledge, answer the query.
Query: {{.Question}}
Answer:`)

const SQLGenSystem = `You translate questions into a single SQL query. Only ever read data, never modify it.`

var SQLGen = newTemplate[SQLGenParams]("sql_generation", `Given an input question, write one syntactically correct {{.Dialect}} query to run against the table "{{.Table}}".
Only use the columns listed in the schema below and quote column names with double quotes.
Schema:
{{.Schema}}

Question: {{.Question}}
Respond with the SQL query only, no explanation and no markdown.`)

const ExplainedQuerySystem = `You answer questions from the results of SQL queries. ` +
	`Always explain how the answer was computed from the query, so the user can check the numbers.`

var ExplainedQuery = newTemplate[ExplainedQueryParams]("explained_query", `Question: {{.Question}}
SQL query: {{.SQL}}
SQL result:
{{.Result}}

Answer the question using the result above, then briefly explain in plain language how the query computed it.`)

const VectorToolDescription = "Use one of these if you think the answer to the question is likely to come from one or a few documents. " +
	"Input is a natural language question."

const SQLToolDescription = "Use this if you think the answer to the question is likely to come from a lot of documents or requires a calculation " +
	"(e.g. an average, sum, or ordering values in some way). Input is a natural language question."
