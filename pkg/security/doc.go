/*
Package security groups the proxy's transport and secret handling.

  - tls: listener TLS configuration with certificate hot reload
  - secrets: upstream API keys resolved from environment variables or
    mounted files, cached and invalidated on change

Callers of the proxy are not authenticated here; their credential is passed
through to the upstream as-is.
*/
package security
