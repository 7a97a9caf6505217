package routes

import (
	"fmt"
	"net/http"

	gql "github.com/graphql-go/graphql"
	"github.com/mazeltote/mazeltote/app/models"
	"github.com/mazeltote/mazeltote/app/repositories"
	"github.com/mazeltote/mazeltote/pkg/graphql"
)

// catalogHandler builds the read-only GraphQL surface over the catalogue:
// products, product(slug:), hottest, charities. Mutations stay REST-only.
func catalogHandler() (http.HandlerFunc, error) {
	products := repositories.NewProductRepository()

	productType := gql.NewObject(gql.ObjectConfig{
		Name: "Product",
		Fields: gql.Fields{
			"id":          &gql.Field{Type: gql.Int},
			"name":        &gql.Field{Type: gql.String},
			"slug":        &gql.Field{Type: gql.String},
			"description": &gql.Field{Type: gql.String},
			"price":       &gql.Field{Type: gql.Float},
			"stock":       &gql.Field{Type: gql.Int},
			"images":      &gql.Field{Type: gql.String},
			"isHottest": &gql.Field{
				Type: gql.Boolean,
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					product, ok := p.Source.(models.Product)
					if !ok {
						return nil, fmt.Errorf("unexpected source %T", p.Source)
					}
					return product.IsHottest, nil
				},
			},
		},
	})

	rootQuery := gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"products": &gql.Field{
				Type: gql.NewList(productType),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return products.Active()
				},
			},
			"hottest": &gql.Field{
				Type: gql.NewList(productType),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return products.Hottest()
				},
			},
			"product": &gql.Field{
				Type: productType,
				Args: gql.FieldConfigArgument{
					"slug": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
				},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					slug, _ := p.Args["slug"].(string)
					product, err := products.FindBySlug(slug)
					if err != nil || !product.IsActive {
						return nil, nil
					}
					return product, nil
				},
			},
			"charities": &gql.Field{
				Type: gql.NewList(gql.String),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return models.Charities, nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(rootQuery)
	if err != nil {
		return nil, fmt.Errorf("routes: build catalog schema: %w", err)
	}
	return graphql.Handler(schema), nil
}
