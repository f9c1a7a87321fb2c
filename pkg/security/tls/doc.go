/*
Package tls serves the archival API over TLS.

ServerConfig turns the api.tls section into a crypto/tls configuration:

	api:
	  tls:
	    enabled: true
	    cert_file: /etc/archivist/tls/server.crt
	    key_file: /etc/archivist/tls/server.key
	    min_version: "1.3"
	    reload_interval: 5m
	    client_ca_file: /etc/archivist/tls/gateway-ca.pem
	    client_auth: require

The certificate is served through a CertificateReloader, so renewed pairs are
picked up without restarting the server. Setting client_ca_file restricts
callers to clients presenting a certificate from that CA, typically the
gateway that asserts the identity headers.
*/
package tls
