package main

//go:generate swag init -g cmd/alertd/main.go -o docs

// @title           Market Alert API
// @version         0.1.0
// @description     Alert monitor status, notification channel settings and feature switches.
// @host            localhost:8080
// @BasePath        /
// @schemes         http

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
