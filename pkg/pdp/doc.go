/*
Package pdp authorizes inbound user-origin commands against an external
policy decision point before they reach an orchestrator's slice workflow
(spec.md §6). The PDP service's own decision logic is out of scope —
this package defines the request/response contract (action, resource
kind, subject) and two Authorizer implementations: AlwaysAllow, wired in
when pdp.enable is false, and Client, a plain HTTP POST client wired in
otherwise. A deny response carries the message the command is rejected
with, unmodified, back to the caller.
*/
package pdp
