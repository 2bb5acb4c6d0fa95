// Package evaluation decides the judgment points of a flow with a language
// model: whether an optimize output meets its criteria, which bestOfAll
// candidate is best, and whether a oneOf condition holds.
//
// Models are asked to reply with a strict JSON object whose schema is
// derived from the reply structs; replies wrapped in prose or code fences
// are tolerated as long as they contain one JSON object.
package evaluation
