// Package schema holds the media GraphQL schema and its resolvers.
package schema

import (
	"github.com/graph-gophers/graphql-go"

	"clubmedia/internal/microservices/http-api/service"
)

const sdl = `
schema {
	query: Query
	mutation: Mutation
}

type Query {
	media(id: ID!): Media
	clubMedia(clubId: ID!, page: Int = 1, pageSize: Int = 20): MediaPage!
}

type Mutation {
	createMedia(input: CreateMediaInput!): Media!
	archiveMedia(id: ID!): Media!
}

input CreateMediaInput {
	clubId: ID!
	title: String!
	kind: String!
	url: String!
}

type Media {
	id: ID!
	clubId: ID!
	title: String!
	kind: String!
	url: String!
	status: String!
	createdAt: String!
}

type MediaPage {
	items: [Media!]!
	total: Int!
}
`

// New parses the schema against a resolver backed by svc.
func New(svc service.MediaService) (*graphql.Schema, error) {
	return graphql.ParseSchema(sdl, &Resolver{svc: svc})
}
