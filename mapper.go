package models

// Mapper turns a resource into an instance of the model behind source. Results
// are cached, so implementations must be pure functions of their inputs.
type Mapper interface {
	Map(res Resource, source *Source) (any, error)
}

// MapperFunc adapts a function to Mapper.
type MapperFunc func(res Resource, source *Source) (any, error)

// Map implements Mapper.
func (f MapperFunc) Map(res Resource, source *Source) (any, error) {
	return f(res, source)
}

// FactoryMapper maps every resource to a blank instance from the source
// factory. It suits models that are populated lazily from the resource.
var FactoryMapper Mapper = MapperFunc(func(_ Resource, source *Source) (any, error) {
	return source.New(), nil
})
