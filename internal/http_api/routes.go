package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	authed := s.router.Group("/", s.authenticate())

	authed.POST("/payments/initiate/", s.initiatePayment)
	authed.POST("/payments/confirm/", s.confirmPayment)
	authed.POST("/payments/btc/confirm/", s.confirmBTCPayment)
	authed.GET("/payments/btc/status/", s.btcStatus)
	authed.GET("/subscriptions/status/", s.subscriptionStatus)
	authed.GET("/notifications/telegram/link/", s.telegramLink)

	admin := authed.Group("/admin", s.requireAdmin())
	admin.GET("/payments/", s.adminPayments)
	admin.GET("/subscriptions/", s.adminSubscriptions)
}
