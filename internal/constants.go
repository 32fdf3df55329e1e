package internal

const COOKIE_ACCESS_TOKEN_NAME = "koon_access_token"
