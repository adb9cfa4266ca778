// Package message turns plain text bodies into format=flowed MIME parts.
//
// FlowText and FlowTextParallel wrap the lines of a body with package flow.
// FlowBody decodes a body, flows it, and selects a charset and
// Content-Transfer-Encoding. WriteFlowedPart writes the result as a MIME
// entity. RewriteMessage does this for each text/plain part of a full message,
// recursing into multiparts.
package message
