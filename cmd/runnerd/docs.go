package main

// General API documentation for swaggo. Build with -tags=swagger to serve it.
//
// @title           runnerd API
// @version         1.0
// @description     Admission and dispatch gateway in front of a pool of inference runners.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
//
// @schemes http
