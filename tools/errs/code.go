package errs

const (
	InvalidCredentials = 1001
	Unauthenticated    = 1002
	ExpiredAuth        = 1003
	Forbidden          = 1004

	MalformedMessage = 2001
	PeerUnreachable  = 2002
	ConnectionFault  = 2003

	RecordNotFound = 3001

	ServerInternalError = 5000
)

var (
	ErrInvalidCredentials = NewCodeError(InvalidCredentials, "invalid credentials")
	ErrUnauthenticated    = NewCodeError(Unauthenticated, "unauthenticated")
	ErrExpiredAuth        = NewCodeError(ExpiredAuth, "authentication expired")
	ErrForbidden          = NewCodeError(Forbidden, "forbidden")

	ErrMalformedMessage = NewCodeError(MalformedMessage, "malformed message")
	ErrPeerUnreachable  = NewCodeError(PeerUnreachable, "peer unreachable")
	ErrConnectionFault  = NewCodeError(ConnectionFault, "connection fault")

	ErrRecordNotFound = NewCodeError(RecordNotFound, "record not found")

	ErrServerInternal = NewCodeError(ServerInternalError, "server internal error")
)
