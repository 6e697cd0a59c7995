// Package mcp exposes the merge game to AI agents over the Model Context
// Protocol.
//
// Client is a thin proxy: every tool call is translated into a request
// against the REST API and the JSON answer is rendered as plain text. Boards
// are printed as right-aligned columns so agents can read rows and columns
// without parsing JSON.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - game_state, move, bulk_move, new_game, move_history
//   - list_configs, leaderboard, game_instructions
//
// Tool failures, including API errors such as an unknown session, are
// returned as MCP error results rather than Go errors so the agent sees the
// message.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal().Err(err).Msg("stdio server failed")
//	}
package mcp
