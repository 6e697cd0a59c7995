// Package api exposes the game service over HTTP.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"config_id": "mini", "seed": 42}, both optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed|score&order=asc|desc&limit=N&config=ID)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current board snapshot
//   - POST /api/sessions/{id}/move - Slide the board ({"direction": "left"})
//   - POST /api/sessions/{id}/bulk-move - Up to 50 moves ({"moves": ["up", "left"]})
//   - POST /api/sessions/{id}/new-game - Start over in the same session
//   - GET /api/sessions/{id}/history - Move history (?page=1&limit=20&order=desc)
//
// Configuration:
//   - GET /api/configs - List board variants
//   - GET /api/configs/{name} - Get one variant
//   - POST /api/configs - Save a variant
//
// Results:
//   - GET /api/leaderboard - Best finished games (?limit=N)
//
// Other:
//   - GET /api/health - Liveness check
//   - GET /ws?session={id} - WebSocket stream of state updates
//
// Errors are JSON objects of the form {"error": "..."}. Unknown sessions and
// configurations answer 404; unknown directions and invalid variants answer
// 400. A move that leaves the board unchanged is not an error: it answers
// 200 with "changed": false.
package api
