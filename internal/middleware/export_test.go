package middleware

// NormalizePath exposes normalizePath to the external test package.
var NormalizePath = normalizePath
