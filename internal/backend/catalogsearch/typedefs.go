package catalogsearch

// typeDefs is the reduced catalog type set served by the search service.
// Fields it does not list on SimpleProduct are merged in from the monolith.
const typeDefs = `
type Query {
    """
    Search products with the Search Storefront service.
    """
    productsSearch(
        search: String
        filter: ProductAttributeFilterInput
        sort: ProductAttributeSortInput
        currentPage: Int = 1
        pageSize: Int = 20
    ): Products
}

"""
ProductAttributeFilterInput defines the filters to be used in the search. A
filter contains at least one attribute, a comparison operator, and the value
that is being searched for.
"""
input ProductAttributeFilterInput {
    "Filter product by category id"
    category_id: FilterEqualTypeInput
    "Attribute label: Description"
    description: FilterMatchTypeInput
    "Attribute label: Product Name"
    name: FilterMatchTypeInput
    "Attribute label: Price"
    price: FilterRangeTypeInput
    "Attribute label: Short Description"
    short_description: FilterMatchTypeInput
    "Attribute label: SKU"
    sku: FilterEqualTypeInput
    "The part of the URL that identifies the product"
    url_key: FilterEqualTypeInput
}

"Defines a filter that matches the input exactly."
input FilterEqualTypeInput {
    eq: String
    in: [String]
}

"Defines a filter that performs a fuzzy search."
input FilterMatchTypeInput {
    match: String
}

"Defines a filter that matches a range of values, such as prices or dates."
input FilterRangeTypeInput {
    from: String
    to: String
}

"""
ProductAttributeSortInput specifies the attribute to use for sorting search
results and indicates whether the results are sorted in ascending or
descending order.
"""
input ProductAttributeSortInput {
    name: SortEnum
    position: SortEnum
    price: SortEnum
    relevance: SortEnum
}

enum SortEnum {
    ASC
    DESC
}

"""
The ProductInterface contains attributes that are common to all types of
products.
"""
interface ProductInterface {
    "The ID number assigned to the product."
    id: Int
    "A number or code assigned to a product to identify the product."
    sku: String
}

"A simple product is tangible and usually sold as single units or in fixed quantities."
type SimpleProduct implements ProductInterface {
    id: Int
    sku: String
}

"DownloadableProduct defines a product that the customer downloads."
type DownloadableProduct implements ProductInterface {
    id: Int
    sku: String
}

"The Products object is the top-level object returned in a product search."
type Products {
    "An array of products that match the specified search criteria."
    items: [ProductInterface]
    "The number of products returned."
    total_count: Int
}
`
