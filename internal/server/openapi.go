package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/standgames/stand/internal/game"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Stand API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the stand game platform.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /webhook
	getWebhook, _ := r.NewOperationContext(http.MethodGet, "/webhook")
	getWebhook.SetSummary("Webhook verification")
	getWebhook.SetDescription("Messaging platform subscription handshake. Echoes hub.challenge when the verify token matches.")
	getWebhook.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType("text/plain"))
	getWebhook.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(getWebhook)

	// POST /webhook
	postWebhook, _ := r.NewOperationContext(http.MethodPost, "/webhook")
	postWebhook.SetSummary("Webhook events")
	postWebhook.SetDescription("Receives inbound DM events. Six-digit texts join a game; quick replies and postbacks answer quiz questions.")
	postWebhook.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postWebhook)

	// POST /api/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/join")
	postJoin.SetSummary("Join a game")
	postJoin.SetDescription("Reserves a slot and assigns the next sequential player id. Idempotent per identity.")
	postJoin.AddReqStructure(JoinRequest{})
	postJoin.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// POST /api/validate
	postValidate, _ := r.NewOperationContext(http.MethodPost, "/api/validate")
	postValidate.SetSummary("Validate codes")
	postValidate.SetDescription("Runs the game type's validator over the submitted codes.")
	postValidate.AddReqStructure(ValidateRequest{})
	postValidate.AddRespStructure(game.ValidationResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postValidate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postValidate.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postValidate)

	// POST /api/score
	postScore, _ := r.NewOperationContext(http.MethodPost, "/api/score")
	postScore.SetSummary("Store score")
	postScore.SetDescription("Records a timer run for a T1MER player. Overwrites the previous run.")
	postScore.AddReqStructure(StoreScoreRequest{})
	postScore.AddRespStructure(game.ScoreRecord{}, openapi.WithHTTPStatus(http.StatusOK))
	postScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postScore)

	// GET /api/games/{gameID}/ranking
	getRanking, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}/ranking")
	getRanking.SetSummary("Score ranking")
	getRanking.SetDescription("Players ordered by score ascending, capped by the limit query parameter.")
	getRanking.AddRespStructure(RankingResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getRanking.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getRanking.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRanking)

	// GET /api/games/{gameID}
	getPublicGame, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}")
	getPublicGame.SetSummary("Get game")
	getPublicGame.SetDescription("Public polling view of a game, including raffle winners once drawn.")
	getPublicGame.AddRespStructure(GameResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getPublicGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getPublicGame)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with email and password. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.SetDescription("Clears admin session and cookie.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/admin/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getMe.SetSummary("Current admin")
	getMe.SetDescription("Returns the currently authenticated admin. Requires admin_session cookie.")
	getMe.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/admin/games
	listGames, _ := r.NewOperationContext(http.MethodGet, "/api/admin/games")
	listGames.SetSummary("List games")
	listGames.SetDescription("Returns the authenticated admin's games. Requires admin_session cookie.")
	listGames.AddRespStructure([]GameResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	listGames.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listGames)

	// POST /api/admin/games
	createGame, _ := r.NewOperationContext(http.MethodPost, "/api/admin/games")
	createGame.SetSummary("Create game")
	createGame.SetDescription("Creates a game under a freshly allocated six-digit join code. Requires admin_session cookie.")
	createGame.AddReqStructure(CreateGameRequest{})
	createGame.AddRespStructure(GameResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(createGame)

	// GET /api/admin/games/{gameID}
	getGame, _ := r.NewOperationContext(http.MethodGet, "/api/admin/games/{gameID}")
	getGame.SetSummary("Get game (admin)")
	getGame.SetDescription("Returns one of the admin's games. Requires admin_session cookie.")
	getGame.AddRespStructure(GameResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getGame)

	// PUT /api/admin/games/{gameID}
	updateGame, _ := r.NewOperationContext(http.MethodPut, "/api/admin/games/{gameID}")
	updateGame.SetSummary("Update game")
	updateGame.SetDescription("Toggles whether the game accepts joins and validations. Requires admin_session cookie.")
	updateGame.AddReqStructure(UpdateGameRequest{})
	updateGame.AddRespStructure(GameResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	updateGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	updateGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(updateGame)

	// DELETE /api/admin/games/{gameID}
	deleteGame, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/games/{gameID}")
	deleteGame.SetSummary("Delete game")
	deleteGame.SetDescription("Deletes a game and its players. Requires admin_session cookie.")
	deleteGame.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	deleteGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(deleteGame)

	// GET /api/admin/games/{gameID}/players
	listPlayers, _ := r.NewOperationContext(http.MethodGet, "/api/admin/games/{gameID}/players")
	listPlayers.SetSummary("List players")
	listPlayers.SetDescription("Returns every player of a game with validation status. Requires admin_session cookie.")
	listPlayers.AddRespStructure([]PlayerSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	listPlayers.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	listPlayers.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listPlayers)

	// PUT /api/admin/games/{gameID}/quiz
	configureQuiz, _ := r.NewOperationContext(http.MethodPut, "/api/admin/games/{gameID}/quiz")
	configureQuiz.SetSummary("Configure quiz")
	configureQuiz.SetDescription("Saves the question order and retro-initializes existing players. Requires admin_session cookie.")
	configureQuiz.AddReqStructure(ConfigureQuizRequest{})
	configureQuiz.AddRespStructure(game.ConfigureReport{}, openapi.WithHTTPStatus(http.StatusOK))
	configureQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	configureQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(configureQuiz)

	// GET /api/admin/games/{gameID}/quiz
	exportQuiz, _ := r.NewOperationContext(http.MethodGet, "/api/admin/games/{gameID}/quiz")
	exportQuiz.SetSummary("Export quiz")
	exportQuiz.SetDescription("Dumps questions and every player's quiz progress. Requires admin_session cookie.")
	exportQuiz.AddRespStructure(game.QuizExport{}, openapi.WithHTTPStatus(http.StatusOK))
	exportQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	exportQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(exportQuiz)

	// POST /api/admin/games/{gameID}/quiz/start
	startQuiz, _ := r.NewOperationContext(http.MethodPost, "/api/admin/games/{gameID}/quiz/start")
	startQuiz.SetSummary("Start quiz")
	startQuiz.SetDescription("Sends the intro and first question to the listed identities. Requires admin_session cookie.")
	startQuiz.AddReqStructure(StartQuizRequest{})
	startQuiz.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	startQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	startQuiz.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(startQuiz)

	// POST /api/admin/games/{gameID}/raffle
	drawRaffle, _ := r.NewOperationContext(http.MethodPost, "/api/admin/games/{gameID}/raffle")
	drawRaffle.SetSummary("Draw raffle")
	drawRaffle.SetDescription("Samples winners from the eligible players and announces them. Requires admin_session cookie.")
	drawRaffle.AddReqStructure(DrawRaffleRequest{})
	drawRaffle.AddRespStructure(game.DrawResult{}, openapi.WithHTTPStatus(http.StatusOK))
	drawRaffle.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	drawRaffle.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	drawRaffle.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(drawRaffle)

	// GET /api/admin/catalogs/{catalogID}
	getCatalog, _ := r.NewOperationContext(http.MethodGet, "/api/admin/catalogs/{catalogID}")
	getCatalog.SetSummary("Get catalog")
	getCatalog.SetDescription("Returns a pairing catalog. Requires admin_session cookie.")
	getCatalog.AddRespStructure(ReplaceCatalogRequest{}, openapi.WithHTTPStatus(http.StatusOK))
	getCatalog.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getCatalog)

	// PUT /api/admin/catalogs/{catalogID}
	putCatalog, _ := r.NewOperationContext(http.MethodPut, "/api/admin/catalogs/{catalogID}")
	putCatalog.SetSummary("Replace catalog")
	putCatalog.SetDescription("Replaces a pairing catalog and invalidates its cache. Requires admin_session cookie.")
	putCatalog.AddReqStructure(ReplaceCatalogRequest{})
	putCatalog.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	putCatalog.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	putCatalog.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(putCatalog)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	body, err := json.Marshal(spec)
	if err != nil {
		panic(err)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(body)
	}
}
