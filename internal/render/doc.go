// Package render turns generated lead content into a personalized document.
//
// A YAML template (a title plus ordered sections) is filled from the record
// payload and written as Markdown under the artifact directory. When a
// converter command is configured, the Markdown file is handed to it (for
// example LibreOffice in headless mode) and the converted file becomes the
// document attached to the reply.
package render
