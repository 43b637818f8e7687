// Package llm talks to a vision-capable chat-completions server and turns
// its free-form replies into detections.
//
// # Request
//
// The server is expected to speak the llama.cpp flavour of the OpenAI
// chat-completions API: a system message pinning the output to a single
// JSON object, a user message holding the task, OCR context and box-size
// constraints, and the screenshot as a base64 PNG data URL in "images".
//
// # Reply parsing
//
// Models do not reliably honour "JSON only". ParseResponse first tries the
// whole reply, then the span from the first '{' to the last '}'. Keys x, y,
// w and h are required.
//
// Coordinates are read as fractions of the image when all four fall in
// (0, 1], and as pixels otherwise. A genuine pixel box whose values all lie
// in (0, 1] is therefore misread as relative; there is no flag in the reply
// that would let the parser tell the two apart.
package llm
