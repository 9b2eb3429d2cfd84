package http

import (
	"github.com/gin-gonic/gin"

	"studybuddy/internal/bootstrap"
	"studybuddy/internal/transport/http/handler"
	"studybuddy/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	// multipart parts beyond this spill to temp files
	router.MaxMultipartMemory = 8 << 20

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.Auth)
	subjectHandler := handler.NewSubjectHandler(app.Subjects)
	documentHandler := handler.NewDocumentHandler(app.Library)
	questionHandler := handler.NewQuestionHandler(app.Questions)
	studyHandler := handler.NewStudyHandler(app.Study)
	authRequired := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/token", authHandler.Token)
	authGroup.GET("/me", authRequired, authHandler.Me)

	subjects := v1.Group("/subjects", authRequired)
	subjects.GET("", subjectHandler.List)
	subjects.POST("", subjectHandler.Create)
	subjects.GET("/active", subjectHandler.Active)
	subjects.PUT("/active", subjectHandler.Switch)
	subjects.PUT("/active/game", subjectHandler.SetGame)
	subjects.DELETE("/:name", subjectHandler.Delete)

	documents := v1.Group("/documents", authRequired)
	documents.GET("", documentHandler.List)
	documents.POST("", documentHandler.Upload)
	documents.DELETE("/:origin", documentHandler.Delete)

	questions := v1.Group("/questions", authRequired)
	questions.GET("", questionHandler.List)
	questions.POST("", questionHandler.Add)
	questions.DELETE("/:n", questionHandler.Remove)

	study := v1.Group("/study", authRequired)
	study.GET("/styles", studyHandler.Styles)
	study.POST("/teach", studyHandler.Teach)
	study.POST("/ask", studyHandler.Ask)
	study.POST("/test", studyHandler.Test)

	return router
}
