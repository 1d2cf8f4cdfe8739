// Package dispatch runs kms-cli commands.
//
// Every command is described by a CommandSpec in a static registry: its
// positional parameters, the token scope that authorizes it, the remote
// procedure it calls and how the result is rendered. The Dispatcher walks
// one invocation through
//
//	Idle → ConfigLoading → TokenResolving → Aborted
//	                                      → RequestBuilding → AwaitingResponse → Rendered | Failed
//
// and prints exactly one diagnostic line for every failure. A command whose
// token is absent never reaches the network.
package dispatch
